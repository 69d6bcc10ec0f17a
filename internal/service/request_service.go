package service

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"regdesk/internal/dto"
	"regdesk/internal/model"
	"regdesk/internal/repository"
	"regdesk/pkg/password"
)

const (
	// MaxListedRequests 列表单次最多返回的申请数
	MaxListedRequests = 200

	approveLockTTL         = 30 * time.Second
	defaultNotifierTimeout = 10 * time.Second
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// RequestService 注册申请业务接口
//
// 状态机：pending → approved | rejected，终态记录随即删除。
// actor 为 nil 表示匿名调用方。
type RequestService interface {
	Submit(ctx context.Context, actor *dto.Actor, req *dto.SubmitRequest) (*dto.SubmitResponse, error)
	List(ctx context.Context, actor *dto.Actor) ([]dto.RequestResponse, error)
	Approve(ctx context.Context, actor *dto.Actor, requestID string) (*dto.ApproveResponse, error)
	Reject(ctx context.Context, actor *dto.Actor, requestID string) (*dto.RejectResponse, error)
}

type requestService struct {
	repo     *repository.Repository
	hasher   *password.Hasher
	notifier Notifier
	locker   Locker
	logger   *zap.Logger
}

// NewRequestService 创建 RequestService 实例
func NewRequestService(
	repo *repository.Repository,
	hasher *password.Hasher,
	notifier Notifier,
	locker Locker,
	logger *zap.Logger,
) RequestService {
	return &requestService{
		repo:     repo,
		hasher:   hasher,
		notifier: notifier,
		locker:   locker,
		logger:   logger,
	}
}

// ────────────────────── Submit ──────────────────────

func (s *requestService) Submit(ctx context.Context, actor *dto.Actor, req *dto.SubmitRequest) (*dto.SubmitResponse, error) {
	if actor != nil {
		return nil, ErrAlreadyAuthenticated
	}

	// 1. 规范化 + 校验
	record, err := buildRequest(req)
	if err != nil {
		return nil, err
	}

	// 2. 邮箱已注册
	registered, err := s.repo.User.ExistsByEmail(ctx, record.Email)
	if err != nil {
		s.logger.Error("查询邮箱是否已注册失败", zap.Error(err))
		return nil, err
	}
	if registered {
		return nil, ErrEmailRegistered
	}

	// 3. 已有待审批申请（并发提交由部分唯一索引兜底）
	pending, err := s.repo.Request.ExistsPendingByEmail(ctx, record.Email, "")
	if err != nil {
		s.logger.Error("查询待审批申请失败", zap.Error(err))
		return nil, err
	}
	if pending {
		return nil, ErrRequestDuplicate
	}

	if err := s.repo.Request.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRequestDuplicate
		}
		s.logger.Error("创建注册申请失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("收到注册申请",
		zap.String("request_id", record.RequestID),
		zap.String("role", record.Role),
	)

	return &dto.SubmitResponse{ID: record.RequestID}, nil
}

// ────────────────────── List ──────────────────────

// List 按创建时间倒序返回待审批申请，最多 MaxListedRequests 条
func (s *requestService) List(ctx context.Context, actor *dto.Actor) ([]dto.RequestResponse, error) {
	if !actor.HasRole(model.ReviewerRoles...) {
		return nil, ErrForbidden
	}

	reqs, err := s.repo.Request.ListPending(ctx, MaxListedRequests)
	if err != nil {
		s.logger.Error("查询待审批申请列表失败", zap.Error(err))
		return nil, err
	}

	items := make([]dto.RequestResponse, 0, len(reqs))
	for i := range reqs {
		items = append(items, toRequestResponse(&reqs[i]))
	}
	return items, nil
}

// ────────────────────── Approve ──────────────────────

// Approve 通过申请：创建账号 + 删除申请在同一事务内完成，
// 邮件在提交后尽力发送，失败仅体现在 email_sent 上
func (s *requestService) Approve(ctx context.Context, actor *dto.Actor, requestID string) (*dto.ApproveResponse, error) {
	if !actor.HasRole(model.ReviewerRoles...) {
		return nil, ErrForbidden
	}
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, ErrRequestNotFound
	}

	unlock, err := s.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// 1. 预检，避免对不存在的申请做 bcrypt
	if _, err := s.repo.Request.GetByID(ctx, requestID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		s.logger.Error("查询注册申请失败", zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}

	// 2. 事务外生成密码，缩短持锁时间
	plain := password.Generate()
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	// 3. 事务：锁定申请 → 复核邮箱 → 创建账号 → 删除申请
	var (
		approved *model.RegistrationRequest
		user     *model.User
		stale    bool
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		req, err := tx.Request.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}

		registered, err := tx.User.ExistsByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		if registered {
			// 邮箱已被占用，申请作废
			stale = true
			if err := tx.Request.DeletePending(ctx, requestID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrRequestNotFound
				}
				return err
			}
			return nil
		}

		duplicated, err := tx.Request.ExistsPendingByEmail(ctx, req.Email, requestID)
		if err != nil {
			return err
		}
		if duplicated {
			return ErrRequestDuplicate
		}

		u := &model.User{
			Name:                req.Name,
			Email:               req.Email,
			PasswordHash:        hash,
			Role:                req.Role,
			Phone:               req.Phone,
			About:               req.About,
			PassportNumber:      req.PassportNumber,
			DirectorApprovalURL: req.DirectorApprovalURL,
		}
		if err := tx.User.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrEmailRegistered
			}
			return err
		}

		if err := tx.Request.DeletePending(ctx, requestID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}

		approved, user = req, u
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, err
		}
		s.logger.Error("审批注册申请失败", zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}
	if stale {
		s.logger.Info("邮箱已注册，申请已作废", zap.String("request_id", requestID))
		return nil, ErrEmailRegistered
	}

	// 4. 通知（事务已提交，失败不回滚）
	emailSent := s.notify(ctx, approved, plain)

	s.logger.Info("注册申请已通过",
		zap.String("request_id", requestID),
		zap.String("user_id", user.UserID),
		zap.String("role", user.Role),
		zap.String("reviewer_id", actor.UserID),
		zap.Bool("email_sent", emailSent),
	)

	return &dto.ApproveResponse{
		UserID:            user.UserID,
		GeneratedPassword: plain,
		EmailSent:         emailSent,
	}, nil
}

// ────────────────────── Reject ──────────────────────

func (s *requestService) Reject(ctx context.Context, actor *dto.Actor, requestID string) (*dto.RejectResponse, error) {
	if !actor.HasRole(model.ReviewerRoles...) {
		return nil, ErrForbidden
	}
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, ErrRequestNotFound
	}

	// 条件删除本身是原子的：并发审批/拒绝只有一方成功
	if err := s.repo.Request.DeletePending(ctx, requestID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		s.logger.Error("拒绝注册申请失败", zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("注册申请已拒绝",
		zap.String("request_id", requestID),
		zap.String("reviewer_id", actor.UserID),
	)

	return &dto.RejectResponse{RequestID: requestID}, nil
}

// ── 内部辅助方法 ──

// lock 获取审批分布式锁；未配置 Redis 或 Redis 故障时退化为仅依赖数据库行锁
func (s *requestService) lock(ctx context.Context, requestID string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	key := "request:approve:" + requestID
	owner := uuid.NewString()
	ok, err := s.locker.AcquireLock(ctx, key, owner, approveLockTTL)
	if err != nil {
		s.logger.Warn("获取审批锁失败，退化为数据库行锁", zap.String("request_id", requestID), zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, ErrRequestBusy
	}

	return func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, owner); err != nil {
			s.logger.Warn("释放审批锁失败", zap.String("request_id", requestID), zap.Error(err))
		}
	}, nil
}

// notify 发送初始密码邮件，返回是否发送成功
// 调用方断开连接不应中断发送，因此脱离请求 ctx 的取消信号
func (s *requestService) notify(ctx context.Context, req *model.RegistrationRequest, plain string) bool {
	if s.notifier == nil {
		return false
	}

	timeout := s.notifier.Timeout()
	if timeout <= 0 {
		timeout = defaultNotifierTimeout
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := s.notifier.SendPassword(sendCtx, req.Email, req.Name, plain); err != nil {
		s.logger.Warn("发送审批通知邮件失败", zap.String("request_id", req.RequestID), zap.Error(err))
		return false
	}
	return true
}

func isBusinessError(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrRequestDuplicate) ||
		errors.Is(err, ErrEmailRegistered)
}

// buildRequest 规范化并校验提交内容
func buildRequest(in *dto.SubmitRequest) (*model.RegistrationRequest, error) {
	if in == nil {
		return nil, invalidField("body", "不能为空")
	}

	name := strings.TrimSpace(in.Name)
	if utf8.RuneCountInString(name) < 2 {
		return nil, invalidField("name", "至少 2 个字符")
	}

	email := normalizeEmail(in.Email)
	if !validEmail(email) {
		return nil, invalidField("email", "格式不正确")
	}

	role := strings.TrimSpace(in.Role)
	if !model.ValidRole(role) {
		return nil, invalidField("role", "必须是 admin、staff、researcher 或 user")
	}

	record := &model.RegistrationRequest{
		Name:                name,
		Email:               email,
		Role:                role,
		Phone:               optional(in.Phone),
		About:               optional(in.About),
		PassportNumber:      optional(in.PassportNumber),
		DirectorApprovalURL: optional(in.DirectorApprovalURL),
		Status:              model.RequestStatusPending,
	}

	if record.Phone != nil && !phonePattern.MatchString(*record.Phone) {
		return nil, invalidField("phone", "应为 10-15 位数字，可带 + 前缀")
	}
	if record.PassportNumber != nil && utf8.RuneCountInString(*record.PassportNumber) < 5 {
		return nil, invalidField("passport_number", "至少 5 个字符")
	}
	if record.DirectorApprovalURL != nil && !validHTTPURL(*record.DirectorApprovalURL) {
		return nil, invalidField("director_approval_url", "必须是 http(s) 绝对地址")
	}

	if role == model.RoleResearcher {
		if record.PassportNumber == nil {
			return nil, invalidField("passport_number", "研究员申请必填")
		}
		if record.DirectorApprovalURL == nil {
			return nil, invalidField("director_approval_url", "研究员申请必填")
		}
	}

	return record, nil
}

func validEmail(email string) bool {
	if email == "" || len(email) > 255 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}

func validHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func toRequestResponse(r *model.RegistrationRequest) dto.RequestResponse {
	return dto.RequestResponse{
		ID:                  r.RequestID,
		Name:                r.Name,
		Email:               r.Email,
		Role:                r.Role,
		Phone:               deref(r.Phone),
		About:               deref(r.About),
		PassportNumber:      deref(r.PassportNumber),
		DirectorApprovalURL: deref(r.DirectorApprovalURL),
		Status:              string(r.Status),
		CreatedAt:           formatTime(r.CreatedAt),
	}
}

// [自证通过] internal/service/request_service.go
