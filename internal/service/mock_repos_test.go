package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"regdesk/internal/model"
	"regdesk/internal/repository"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // key: user_id

	// 注入错误
	existsErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
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

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *mockUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// ── Mock RequestRepository ──
// 以互斥锁模拟部分唯一索引与条件删除的原子性

type mockRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*model.RegistrationRequest
	seq      int

	// 注入错误
	listErr error
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[string]*model.RegistrationRequest)}
}

func (m *mockRequestRepo) Create(_ context.Context, req *model.RegistrationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.Email == req.Email && r.Status == model.RequestStatusPending {
			return repository.ErrDuplicate
		}
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = model.RequestStatusPending
	}
	// 单调递增的创建时间，保证排序稳定
	m.seq++
	req.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
	m.requests[req.RequestID] = req
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id string) (*model.RegistrationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRequestRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.RegistrationRequest, error) {
	// 在 mock 中与 GetByID 行为一致
	return m.GetByID(ctx, id)
}

func (m *mockRequestRepo) ExistsPendingByEmail(_ context.Context, email, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.requests {
		if id != excludeID && r.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRequestRepo) ListPending(_ context.Context, limit int) ([]model.RegistrationRequest, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.RegistrationRequest, 0, len(m.requests))
	for _, r := range m.requests {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockRequestRepo) DeletePending(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.requests, id)
	return nil
}

func (m *mockRequestRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// ── Mock Notifier ──

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

type sentMail struct {
	to, name, password string
}

func (m *mockNotifier) SendPassword(_ context.Context, to, name, password string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, name: name, password: password})
	return nil
}

func (m *mockNotifier) Timeout() time.Duration { return time.Second }

// ── Mock Locker ──

type mockLocker struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	released []string
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]string)}
}

func (m *mockLocker) AcquireLock(_ context.Context, key, owner string, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return false, nil
	}
	m.held[key] = owner
	return true, nil
}

func (m *mockLocker) ReleaseLock(_ context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] != owner {
		return errors.New("lock not owned")
	}
	delete(m.held, key)
	m.released = append(m.released, key)
	return nil
}

// ── 测试辅助 ──

func newMockRepository() (*repository.Repository, *mockUserRepo, *mockRequestRepo) {
	userRepo := newMockUserRepo()
	requestRepo := newMockRequestRepo()
	return &repository.Repository{
		User:    userRepo,
		Request: requestRepo,
	}, userRepo, requestRepo
}
