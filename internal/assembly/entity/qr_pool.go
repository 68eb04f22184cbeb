package entity

import "time"

// QRPoolEntry 预注册的单件商品码，只能被消费一次
type QRPoolEntry struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	TenantID string `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:uq_pool_code,priority:1"`
	Code     string `json:"code" gorm:"size:64;not null;uniqueIndex:uq_pool_code,priority:2"`

	Status string     `json:"status" gorm:"size:20;not null;default:available"` // available/used
	UsedAt *time.Time `json:"used_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (QRPoolEntry) TableName() string {
	return "qr_pool_entries"
}

// 池码状态
const (
	QRPoolStatusAvailable = "available"
	QRPoolStatusUsed      = "used"
)
