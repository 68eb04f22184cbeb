package entity

import "time"

// Product 商品目录的只读投影，装配扫码时用于展示反馈
type Product struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	TenantID string `json:"tenant_id" gorm:"size:32;not null;index"`

	Name  string `json:"name" gorm:"size:200;not null"`
	Brand string `json:"brand" gorm:"size:100"`
	Model string `json:"model" gorm:"size:100"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
