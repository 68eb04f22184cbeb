package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/packhouse/internal/assembly/entity"
	"gorm.io/gorm"
)

type BundleRepository struct {
	db *gorm.DB
}

func NewBundleRepository(db *gorm.DB) *BundleRepository {
	return &BundleRepository{db: db}
}

func (r *BundleRepository) DB() *gorm.DB {
	return r.db
}

// CreateWithPhases 创建捆包及其阶段（同一事务）
func (r *BundleRepository) CreateWithPhases(ctx context.Context, bundle *entity.Bundle, phases []entity.BundlePhase) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(bundle).Error; err != nil {
			return err
		}
		if len(phases) > 0 {
			if err := tx.Create(&phases).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *BundleRepository) FindByID(ctx context.Context, tenantID, id string) (*entity.Bundle, error) {
	var bundle entity.Bundle
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&bundle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (r *BundleRepository) FindByQRCode(ctx context.Context, tenantID, qrCode string) (*entity.Bundle, error) {
	var bundle entity.Bundle
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND qr_code = ?", tenantID, qrCode).
		First(&bundle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

type BundleListParams struct {
	TenantID string
	Status   string
	Keyword  string
	Page     int
	Size     int
}

func (r *BundleRepository) List(ctx context.Context, params BundleListParams) ([]entity.Bundle, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Bundle{}).Where("tenant_id = ?", params.TenantID)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("name ILIKE ? OR qr_code ILIKE ?", kw, kw)
	}
	var total int64
	query.Count(&total)
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var bundles []entity.Bundle
	err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&bundles).Error
	return bundles, total, err
}

// MarkAssembling pending→assembling 的条件写，防止过期客户端重放。
// 返回受影响行数：0 表示状态已不是 pending。
func (r *BundleRepository) MarkAssembling(ctx context.Context, tenantID, id, userID string) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&entity.Bundle{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, entity.BundleStatusPending).
		Updates(map[string]interface{}{
			"status":              entity.BundleStatusAssembling,
			"assembly_started_by": userID,
			"assembly_started_at": now,
			"updated_at":          now,
		})
	return res.RowsAffected, res.Error
}

// AdvancePhaseIndex 仅当指针仍指向 fromIndex 时前移一位
func (r *BundleRepository) AdvancePhaseIndex(ctx context.Context, tenantID, id string, fromIndex int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entity.Bundle{}).
		Where("tenant_id = ? AND id = ? AND current_phase_index = ?", tenantID, id, fromIndex).
		Updates(map[string]interface{}{
			"current_phase_index": fromIndex + 1,
			"updated_at":          time.Now(),
		})
	return res.RowsAffected, res.Error
}

// MarkCompleted assembling→completed 的条件写
func (r *BundleRepository) MarkCompleted(ctx context.Context, tenantID, id string) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&entity.Bundle{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, entity.BundleStatusAssembling).
		Updates(map[string]interface{}{
			"status":                entity.BundleStatusCompleted,
			"assembly_completed_at": now,
			"updated_at":            now,
		})
	return res.RowsAffected, res.Error
}

// DeletePending 仅允许删除未开始装配的捆包，阶段一并删除
func (r *BundleRepository) DeletePending(ctx context.Context, tenantID, id string) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, entity.BundleStatusPending).
			Delete(&entity.Bundle{})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if affected == 0 {
			return nil
		}
		return tx.Where("bundle_id = ?", id).Delete(&entity.BundlePhase{}).Error
	})
	return affected, err
}
