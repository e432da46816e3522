package repository

import (
	"context"
	"errors"

	"PairServer/model"

	"gorm.io/gorm"
)

type reportRepositoryImpl struct {
	db *gorm.DB
}

// NewReportRepository 创建举报 Repository。
// 举报是低频管理面数据，纯 MySQL，不走缓存。
func NewReportRepository(db *gorm.DB) IReportRepository {
	return &reportRepositoryImpl{db: db}
}

// Create 创建举报记录
func (r *reportRepositoryImpl) Create(ctx context.Context, report *model.UserReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return WrapDBError(err)
	}
	return nil
}

// GetByID 根据 ID 查询举报记录
func (r *reportRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.UserReport, error) {
	var report model.UserReport
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, WrapDBError(err)
	}
	return &report, nil
}

// List 按状态分页查询举报记录，按创建时间倒序。
func (r *reportRepositoryImpl) List(ctx context.Context, status int8, page, pageSize int) ([]model.UserReport, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := r.db.WithContext(ctx).Model(&model.UserReport{})
	if status >= 0 {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, WrapDBError(err)
	}

	var reports []model.UserReport
	err := query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&reports).Error
	if err != nil {
		return nil, 0, WrapDBError(err)
	}
	return reports, total, nil
}

// Resolve 处理举报：pending -> 处理结果的 CAS。
// 已被其他管理员处理时返回 ok=false。
func (r *reportRepositoryImpl) Resolve(ctx context.Context, id int64, result int8) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.UserReport{}).
		Where("id = ? AND status = ?", id, model.ReportStatusPending).
		Update("status", result)
	if res.Error != nil {
		return false, WrapDBError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CountPending 待处理举报数
func (r *reportRepositoryImpl) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.UserReport{}).
		Where("status = ?", model.ReportStatusPending).
		Count(&n).Error
	if err != nil {
		return 0, WrapDBError(err)
	}
	return n, nil
}
