package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/packhouse/internal/assembly/entity"
	"gorm.io/gorm"
)

type PhaseRepository struct {
	db *gorm.DB
}

func NewPhaseRepository(db *gorm.DB) *PhaseRepository {
	return &PhaseRepository{db: db}
}

// ListByBundle 按 phase_order 返回捆包的全部阶段
func (r *PhaseRepository) ListByBundle(ctx context.Context, bundleID string) ([]entity.BundlePhase, error) {
	var phases []entity.BundlePhase
	err := r.db.WithContext(ctx).
		Where("bundle_id = ?", bundleID).
		Order("phase_order ASC").
		Find(&phases).Error
	return phases, err
}

// FindByOrder 取指定序号的阶段
func (r *PhaseRepository) FindByOrder(ctx context.Context, bundleID string, phaseOrder int) (*entity.BundlePhase, error) {
	var phase entity.BundlePhase
	err := r.db.WithContext(ctx).
		Where("bundle_id = ? AND phase_order = ?", bundleID, phaseOrder).
		First(&phase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &phase, nil
}

// IncrementScanned 单条原子自增：scanned_count < expected_count 时 +1。
// 两台设备并发扫同一阶段时由数据库线性化，0 行受影响表示阶段已满。
// 必须在调用方的事务 tx 内执行。
func (r *PhaseRepository) IncrementScanned(tx *gorm.DB, phaseID string) (int64, error) {
	res := tx.Model(&entity.BundlePhase{}).
		Where("id = ? AND scanned_count < expected_count", phaseID).
		Updates(map[string]interface{}{
			"scanned_count": gorm.Expr("scanned_count + 1"),
			"updated_at":    time.Now(),
		})
	return res.RowsAffected, res.Error
}

// CountIncomplete 未扫满的阶段数（完成装配前的服务端校验）
func (r *PhaseRepository) CountIncomplete(ctx context.Context, bundleID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.BundlePhase{}).
		Where("bundle_id = ? AND scanned_count < expected_count", bundleID).
		Count(&count).Error
	return count, err
}

func (r *PhaseRepository) CountByBundle(ctx context.Context, bundleID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.BundlePhase{}).
		Where("bundle_id = ?", bundleID).
		Count(&count).Error
	return count, err
}
