package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 装配模块仓库集合
type Repositories struct {
	Bundle    *BundleRepository
	Phase     *PhaseRepository
	QRPool    *QRPoolRepository
	Inventory *InventoryRepository
	Product   *ProductRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Bundle:    NewBundleRepository(db),
		Phase:     NewPhaseRepository(db),
		QRPool:    NewQRPoolRepository(db),
		Inventory: NewInventoryRepository(db),
		Product:   NewProductRepository(db),
	}
}
