package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"regdesk/internal/model"
)

// RequestRepository 注册申请数据访问接口
// 除 Create 外所有查询只作用于 pending 状态的记录
type RequestRepository interface {
	// Create 写入待审批申请，同邮箱已有 pending 申请时返回 ErrDuplicate
	Create(ctx context.Context, req *model.RegistrationRequest) error
	GetByID(ctx context.Context, id string) (*model.RegistrationRequest, error)
	// GetByIDForUpdate 使用 SELECT ... FOR UPDATE 行级锁查询，必须在事务中调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.RegistrationRequest, error)
	ExistsPendingByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ListPending(ctx context.Context, limit int) ([]model.RegistrationRequest, error)
	// DeletePending 条件删除 pending 申请，未删除任何行时返回 gorm.ErrRecordNotFound
	DeletePending(ctx context.Context, id string) error
}

type requestRepo struct {
	db *gorm.DB
}

// NewRequestRepo 创建 RequestRepository 实例
func NewRequestRepo(db *gorm.DB) RequestRepository {
	return &requestRepo{db: db}
}

func (r *requestRepo) Create(ctx context.Context, req *model.RegistrationRequest) error {
	if req.Status == "" {
		req.Status = model.RequestStatusPending
	}
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (*model.RegistrationRequest, error) {
	var req model.RegistrationRequest
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND status = ?", id, model.RequestStatusPending).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.RegistrationRequest, error) {
	var req model.RegistrationRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("request_id = ? AND status = ?", id, model.RequestStatusPending).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ExistsPendingByEmail 是否存在该邮箱的 pending 申请，excludeID 非空时排除该申请
func (r *requestRepo) ExistsPendingByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	var count int64
	db := r.db.WithContext(ctx).
		Model(&model.RegistrationRequest{}).
		Where("email = ? AND status = ?", email, model.RequestStatusPending)
	if excludeID != "" {
		db = db.Where("request_id <> ?", excludeID)
	}
	err := db.Count(&count).Error
	return count > 0, err
}

// ListPending 按创建时间倒序返回 pending 申请
func (r *requestRepo) ListPending(ctx context.Context, limit int) ([]model.RegistrationRequest, error) {
	var reqs []model.RegistrationRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", model.RequestStatusPending).
		Order("created_at DESC").
		Limit(limit).
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *requestRepo) DeletePending(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("request_id = ? AND status = ?", id, model.RequestStatusPending).
		Delete(&model.RegistrationRequest{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
