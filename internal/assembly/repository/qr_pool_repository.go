package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/packhouse/internal/assembly/entity"
	"gorm.io/gorm"
)

type QRPoolRepository struct {
	db *gorm.DB
}

func NewQRPoolRepository(db *gorm.DB) *QRPoolRepository {
	return &QRPoolRepository{db: db}
}

func (r *QRPoolRepository) FindByCode(ctx context.Context, tenantID, code string) (*entity.QRPoolEntry, error) {
	var entry entity.QRPoolEntry
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Consume available→used 的原子条件写，可用性检查和状态翻转是同一条语句。
// 0 行受影响表示码已被消费（包括另一台设备刚刚扫过）。
// 必须在调用方的事务 tx 内执行。
func (r *QRPoolRepository) Consume(tx *gorm.DB, tenantID, code string) (int64, error) {
	now := time.Now()
	res := tx.Model(&entity.QRPoolEntry{}).
		Where("tenant_id = ? AND code = ? AND status = ?", tenantID, code, entity.QRPoolStatusAvailable).
		Updates(map[string]interface{}{
			"status":     entity.QRPoolStatusUsed,
			"used_at":    now,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// BatchCreate 批量注册池码（供给流程）
func (r *QRPoolRepository) BatchCreate(ctx context.Context, entries []entity.QRPoolEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

// Stats 按状态统计租户的池码数量
func (r *QRPoolRepository) Stats(ctx context.Context, tenantID string) (available, used int64, err error) {
	err = r.db.WithContext(ctx).Model(&entity.QRPoolEntry{}).
		Where("tenant_id = ? AND status = ?", tenantID, entity.QRPoolStatusAvailable).
		Count(&available).Error
	if err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&entity.QRPoolEntry{}).
		Where("tenant_id = ? AND status = ?", tenantID, entity.QRPoolStatusUsed).
		Count(&used).Error
	return available, used, err
}
