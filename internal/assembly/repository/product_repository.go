package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/packhouse/internal/assembly/entity"
	"gorm.io/gorm"
)

// ProductRepository 商品目录的只读访问，目录维护由别的系统负责
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) FindByID(ctx context.Context, tenantID, id string) (*entity.Product, error) {
	var product entity.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs 批量取商品，会话视图拼装展示名用
func (r *ProductRepository) FindByIDs(ctx context.Context, tenantID string, ids []string) (map[string]entity.Product, error) {
	result := make(map[string]entity.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var products []entity.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}
