package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"regdesk/config"
	"regdesk/internal/api/handler"
	"regdesk/internal/api/middleware"
	"regdesk/internal/model"
	"regdesk/internal/repository"
	"regdesk/internal/service"
	"regdesk/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// In-memory repositories
// ═══════════════════════════════════════════════════════════

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func (m *memUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	m.users[user.UserID] = user
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

type memRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*model.RegistrationRequest
}

func (m *memRequestRepo) Create(_ context.Context, req *model.RegistrationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.Email == req.Email {
			return repository.ErrDuplicate
		}
	}
	req.RequestID = uuid.NewString()
	req.CreatedAt = time.Now()
	m.requests[req.RequestID] = req
	return nil
}

func (m *memRequestRepo) GetByID(_ context.Context, id string) (*model.RegistrationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memRequestRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.RegistrationRequest, error) {
	return m.GetByID(ctx, id)
}

func (m *memRequestRepo) ExistsPendingByEmail(_ context.Context, email, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.requests {
		if id != excludeID && r.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRequestRepo) ListPending(_ context.Context, limit int) ([]model.RegistrationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RegistrationRequest, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRequestRepo) DeletePending(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.requests, id)
	return nil
}

// ═══════════════════════════════════════════════════════════
// Test server
// ═══════════════════════════════════════════════════════════

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	users  *memUserRepo
}

func newTestServer(t *testing.T, health HealthCheck) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Env:          config.EnvDevelopment,
			MaxBodyBytes: 1 << 20,
			CORS:         config.CORSConfig{AllowOrigins: []string{"http://localhost:3000"}},
		},
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-key-for-unit-testing-2026",
			Issuer:          "regdesk",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 30 * 24 * time.Hour,
			BcryptCost:      bcrypt.MinCost,
			Cookie:          config.CookieConfig{SameSite: "Lax"},
		},
	}

	jwtMgr, err := jwt.NewManager(&cfg.Auth)
	if err != nil {
		t.Fatalf("NewManager 失败: %v", err)
	}

	users := &memUserRepo{users: make(map[string]*model.User)}
	repo := &repository.Repository{
		User:    users,
		Request: &memRequestRepo{requests: make(map[string]*model.RegistrationRequest)},
	}
	logger := zap.NewNop()
	svc := service.NewService(cfg, repo, jwtMgr, nil, nil, logger)
	h := handler.NewHandler(svc, &cfg.Auth)

	return &testServer{
		t:      t,
		engine: Setup(cfg, h, jwtMgr, middleware.NewMetrics(), health, logger),
		users:  users,
	}
}

func (s *testServer) seedUser(email, plain, role string) {
	s.t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err := s.users.Create(context.Background(), &model.User{
		Name: "Seed " + role, Email: email, PasswordHash: string(hash), Role: role,
	}); err != nil {
		s.t.Fatalf("seed user: %v", err)
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type call struct {
	method string
	path   string
	body   interface{}
	token  string
	cookie *http.Cookie
}

func (s *testServer) do(c call) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if c.body != nil {
		_ = json.NewEncoder(&buf).Encode(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (s *testServer) expect(c call, status, code int) envelope {
	s.t.Helper()
	w, env := s.do(c)
	if w.Code != status {
		s.t.Fatalf("%s %s: expected %d, got %d (%s)", c.method, c.path, status, w.Code, w.Body.String())
	}
	if env.Code != code {
		s.t.Fatalf("%s %s: expected code %d, got %d", c.method, c.path, code, env.Code)
	}
	return env
}

type loginData struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	User        struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

func (s *testServer) login(email, plain string) (loginData, *http.Cookie) {
	s.t.Helper()
	w, env := s.do(call{method: "POST", path: "/api/v1/auth/login", body: map[string]string{"email": email, "password": plain}})
	if w.Code != http.StatusOK {
		s.t.Fatalf("login %s: expected 200, got %d (%s)", email, w.Code, w.Body.String())
	}
	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		s.t.Fatalf("decode login: %v", err)
	}
	for _, ck := range w.Result().Cookies() {
		if ck.Name == handler.RefreshTokenCookie {
			return data, ck
		}
	}
	s.t.Fatal("login did not set refresh cookie")
	return data, nil
}

// ═══════════════════════════════════════════════════════════
// End-to-end scenario
// ═══════════════════════════════════════════════════════════

func TestRegistrationLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	s.seedUser("admin@example.com", "admin-password", model.RoleAdmin)

	// 匿名提交
	env := s.expect(call{method: "POST", path: "/api/v1/requests", body: map[string]string{
		"name": "Alice Smith", "email": "Alice@Example.com", "role": "researcher",
		"passport_number": "AB123456", "director_approval_url": "https://example.com/approval.pdf",
	}}, http.StatusCreated, 0)
	var submitted struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &submitted)
	if submitted.ID == "" {
		t.Fatal("expected request id")
	}

	// 同邮箱重复提交
	s.expect(call{method: "POST", path: "/api/v1/requests", body: map[string]string{
		"name": "Alice Again", "email": "alice@example.com", "role": "user",
	}}, http.StatusConflict, 30003)

	// 研究员缺少必填项
	s.expect(call{method: "POST", path: "/api/v1/requests", body: map[string]string{
		"name": "Bob", "email": "bob@example.com", "role": "researcher",
	}}, http.StatusBadRequest, 10001)

	// 匿名不可查看列表
	s.expect(call{method: "GET", path: "/api/v1/requests"}, http.StatusForbidden, 10003)

	// 管理员登录
	admin, _ := s.login("admin@example.com", "admin-password")
	if admin.User.Role != model.RoleAdmin || admin.ExpiresIn != 900 {
		t.Fatalf("unexpected admin login payload: %+v", admin)
	}

	// 已登录调用方不能提交申请
	s.expect(call{method: "POST", path: "/api/v1/requests", token: admin.AccessToken, body: map[string]string{
		"name": "Carol", "email": "carol@example.com", "role": "user",
	}}, http.StatusBadRequest, 30004)

	// 列表
	env = s.expect(call{method: "GET", path: "/api/v1/requests", token: admin.AccessToken}, http.StatusOK, 0)
	var items []struct {
		ID     string `json:"id"`
		Email  string `json:"email"`
		Status string `json:"status"`
	}
	_ = json.Unmarshal(env.Data, &items)
	if len(items) != 1 || items[0].ID != submitted.ID || items[0].Email != "alice@example.com" || items[0].Status != "pending" {
		t.Fatalf("unexpected list: %+v", items)
	}

	// 审批通过
	env = s.expect(call{method: "POST", path: "/api/v1/requests/" + submitted.ID + "/approve", token: admin.AccessToken}, http.StatusOK, 0)
	var approved struct {
		UserID            string `json:"user_id"`
		GeneratedPassword string `json:"generated_password"`
		EmailSent         bool   `json:"email_sent"`
	}
	_ = json.Unmarshal(env.Data, &approved)
	if approved.UserID == "" || len(approved.GeneratedPassword) != 12 || approved.EmailSent {
		t.Fatalf("unexpected approve payload: %+v", approved)
	}

	// 重复审批 / 审批后拒绝
	s.expect(call{method: "POST", path: "/api/v1/requests/" + submitted.ID + "/approve", token: admin.AccessToken}, http.StatusNotFound, 30001)
	s.expect(call{method: "POST", path: "/api/v1/requests/" + submitted.ID + "/reject", token: admin.AccessToken}, http.StatusNotFound, 30001)

	// 已注册邮箱不能再次提交
	s.expect(call{method: "POST", path: "/api/v1/requests", body: map[string]string{
		"name": "Alice Smith", "email": "alice@example.com", "role": "user",
	}}, http.StatusConflict, 30002)

	// 新账号使用生成的密码登录
	alice, aliceCookie := s.login("alice@example.com", approved.GeneratedPassword)
	if alice.User.ID != approved.UserID || alice.User.Role != model.RoleResearcher {
		t.Fatalf("unexpected researcher login payload: %+v", alice)
	}
	if !aliceCookie.HttpOnly || aliceCookie.SameSite != http.SameSiteLaxMode || aliceCookie.Secure {
		t.Errorf("unexpected development cookie: %+v", aliceCookie)
	}

	// 研究员无审批权限
	s.expect(call{method: "GET", path: "/api/v1/requests", token: alice.AccessToken}, http.StatusForbidden, 10003)
	s.expect(call{method: "GET", path: "/api/v1/requests/export", token: alice.AccessToken}, http.StatusForbidden, 10003)

	// 当前用户
	env = s.expect(call{method: "GET", path: "/api/v1/auth/me", token: alice.AccessToken}, http.StatusOK, 0)
	if !strings.Contains(string(env.Data), `"email":"alice@example.com"`) {
		t.Errorf("unexpected me payload: %s", env.Data)
	}
	s.expect(call{method: "GET", path: "/api/v1/auth/me"}, http.StatusForbidden, 10003)

	// 刷新（Cookie）
	env = s.expect(call{method: "POST", path: "/api/v1/auth/refresh", cookie: aliceCookie}, http.StatusOK, 0)
	var refreshed loginData
	_ = json.Unmarshal(env.Data, &refreshed)
	if refreshed.AccessToken == "" {
		t.Fatal("expected new access token")
	}
	s.expect(call{method: "GET", path: "/api/v1/auth/me", token: refreshed.AccessToken}, http.StatusOK, 0)

	// 伪造 / 错误类型的 Token 不能刷新
	s.expect(call{method: "POST", path: "/api/v1/auth/refresh", cookie: &http.Cookie{Name: handler.RefreshTokenCookie, Value: alice.AccessToken}}, http.StatusUnauthorized, 11002)
	s.expect(call{method: "POST", path: "/api/v1/auth/refresh"}, http.StatusUnauthorized, 11002)

	// 登出
	w, _ := s.do(call{method: "POST", path: "/api/v1/auth/logout"})
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Errorf("logout should clear the cookie, got %d %q", w.Code, w.Header().Get("Set-Cookie"))
	}

	// 拒绝流程
	env = s.expect(call{method: "POST", path: "/api/v1/requests", body: map[string]string{
		"name": "Dave", "email": "dave@example.com", "role": "user",
	}}, http.StatusCreated, 0)
	_ = json.Unmarshal(env.Data, &submitted)
	s.expect(call{method: "POST", path: "/api/v1/requests/" + submitted.ID + "/reject", token: admin.AccessToken}, http.StatusOK, 0)
	s.expect(call{method: "POST", path: "/api/v1/requests/" + submitted.ID + "/reject", token: admin.AccessToken}, http.StatusNotFound, 30001)
	if _, err := s.users.GetByEmail(context.Background(), "dave@example.com"); err == nil {
		t.Error("rejected request must not create an account")
	}

	// 非法 ID
	s.expect(call{method: "POST", path: "/api/v1/requests/not-a-uuid/approve", token: admin.AccessToken}, http.StatusNotFound, 30001)

	// 导出
	w, _ = s.do(call{method: "GET", path: "/api/v1/requests/export", token: admin.AccessToken})
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Content-Type"), "spreadsheetml") {
		t.Errorf("export failed: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestLogin_UniformFailure(t *testing.T) {
	s := newTestServer(t, nil)
	s.seedUser("staff@example.com", "correct-password", model.RoleStaff)

	wrong, wrongEnv := s.do(call{method: "POST", path: "/api/v1/auth/login", body: map[string]string{"email": "staff@example.com", "password": "nope"}})
	unknown, unknownEnv := s.do(call{method: "POST", path: "/api/v1/auth/login", body: map[string]string{"email": "ghost@example.com", "password": "nope"}})

	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrong.Code, unknown.Code)
	}
	if wrongEnv.Code != unknownEnv.Code || wrongEnv.Message != unknownEnv.Message || wrongEnv.Code != 11001 {
		t.Errorf("failure bodies should be identical: %+v vs %+v", wrongEnv, unknownEnv)
	}
}

func TestStaffCanReview(t *testing.T) {
	s := newTestServer(t, nil)
	s.seedUser("staff@example.com", "staff-password", model.RoleStaff)
	s.seedUser("user@example.com", "user-password", model.RoleUser)

	env := s.expect(call{method: "POST", path: "/api/v1/requests", body: map[string]string{
		"name": "Erin", "email": "erin@example.com", "role": "staff",
	}}, http.StatusCreated, 0)
	var submitted struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &submitted)

	user, _ := s.login("user@example.com", "user-password")
	s.expect(call{method: "POST", path: "/api/v1/requests/" + submitted.ID + "/approve", token: user.AccessToken}, http.StatusForbidden, 10003)

	staff, _ := s.login("staff@example.com", "staff-password")
	s.expect(call{method: "POST", path: "/api/v1/requests/" + submitted.ID + "/approve", token: staff.AccessToken}, http.StatusOK, 0)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	w, _ := s.do(call{method: "GET", path: "/health"})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	w, _ = s.do(call{method: "GET", path: "/metrics"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `path="/health"`) {
		t.Errorf("metrics should include the health request, got %d", w.Code)
	}

	w, env := s.do(call{method: "GET", path: "/nope"})
	if w.Code != http.StatusNotFound || env.Code != 10004 {
		t.Errorf("expected 404/10004, got %d/%d", w.Code, env.Code)
	}

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("every response should carry X-Request-ID")
	}
}

func TestHealth_Unavailable(t *testing.T) {
	s := newTestServer(t, func(context.Context) error { return errors.New("db down") })

	w, _ := s.do(call{method: "GET", path: "/health"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestSubmit_NormalizesEmail(t *testing.T) {
	s := newTestServer(t, nil)
	s.seedUser("admin@example.com", "admin-password", model.RoleAdmin)

	s.expect(call{method: "POST", path: "/api/v1/requests", body: map[string]string{
		"name": "Frank", "email": "  Frank@Example.com ", "role": "user",
	}}, http.StatusCreated, 0)

	// 归一化后与已有申请冲突
	s.expect(call{method: "POST", path: "/api/v1/requests", body: map[string]string{
		"name": "Frank", "email": "frank@example.com", "role": "user",
	}}, http.StatusConflict, 30003)

	admin, _ := s.login("admin@example.com", "admin-password")
	env := s.expect(call{method: "GET", path: "/api/v1/requests", token: admin.AccessToken}, http.StatusOK, 0)
	if !strings.Contains(string(env.Data), `"email":"frank@example.com"`) {
		t.Errorf("email should be stored trimmed and lower-cased: %s", env.Data)
	}

	// 格式错误仍由 Service 拒绝
	w, env := s.do(call{method: "POST", path: "/api/v1/requests", body: map[string]string{
		"name": "Grace", "email": "not-an-email", "role": "user",
	}})
	if w.Code != http.StatusBadRequest || env.Code != 10001 {
		t.Errorf("expected 400/10001, got %d/%d", w.Code, env.Code)
	}
}
