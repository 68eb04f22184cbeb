package entity

import "time"

// InventoryRecord 扫码入库的持久化凭证，一个池码最多产生一条
type InventoryRecord struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	TenantID string `json:"tenant_id" gorm:"size:32;not null;index"`

	QRCode    string `json:"qr_code" gorm:"size:64;not null;index"`
	ProductID string `json:"product_id" gorm:"size:32;not null"`
	BundleID  string `json:"bundle_id" gorm:"size:32;not null;index"`

	Status     string `json:"status" gorm:"size:20;not null;default:in_stock"`
	SourceType string `json:"source_type" gorm:"size:20;not null;default:assembly"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
}

func (InventoryRecord) TableName() string {
	return "inventory_records"
}

// 库存状态 / 来源
const (
	InventoryStatusInStock      = "in_stock"
	InventorySourceTypeAssembly = "assembly"
)
