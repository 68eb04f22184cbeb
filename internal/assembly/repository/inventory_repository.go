package repository

import (
	"context"

	"github.com/bitfantasy/packhouse/internal/assembly/entity"
	"gorm.io/gorm"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Create 必须在调用方的事务 tx 内执行
func (r *InventoryRepository) Create(tx *gorm.DB, record *entity.InventoryRecord) error {
	return tx.Create(record).Error
}

func (r *InventoryRepository) ListByBundle(ctx context.Context, tenantID, bundleID string) ([]entity.InventoryRecord, error) {
	var records []entity.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND bundle_id = ?", tenantID, bundleID).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

func (r *InventoryRepository) CountByQRCode(ctx context.Context, tenantID, qrCode string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.InventoryRecord{}).
		Where("tenant_id = ? AND qr_code = ?", tenantID, qrCode).
		Count(&count).Error
	return count, err
}
