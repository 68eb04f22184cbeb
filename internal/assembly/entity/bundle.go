package entity

import "time"

// Bundle 捆包（多商品套装的装配单元）
type Bundle struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	TenantID string `json:"tenant_id" gorm:"size:32;not null;index;uniqueIndex:uq_bundle_qr,priority:1"`
	Name     string `json:"name" gorm:"size:200;not null"`
	// QR code identifying the bundle itself, distinct from item pool codes
	QRCode string `json:"qr_code" gorm:"size:64;not null;uniqueIndex:uq_bundle_qr,priority:2"`

	Status            string `json:"status" gorm:"size:20;not null;default:pending"` // pending/assembling/completed/sold
	CurrentPhaseIndex int    `json:"current_phase_index" gorm:"not null;default:0"`

	CreatedBy           string     `json:"created_by" gorm:"size:32"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	AssemblyStartedBy   *string    `json:"assembly_started_by" gorm:"size:32"`
	AssemblyStartedAt   *time.Time `json:"assembly_started_at"`
	AssemblyCompletedAt *time.Time `json:"assembly_completed_at"`

	Phases []BundlePhase `json:"phases,omitempty" gorm:"foreignKey:BundleID"`
}

func (Bundle) TableName() string {
	return "bundles"
}

// 捆包状态
const (
	BundleStatusPending    = "pending"
	BundleStatusAssembling = "assembling"
	BundleStatusCompleted  = "completed"
	BundleStatusSold       = "sold"
)

// BundlePhase 装配阶段：一个商品 + 期望扫描数量，按 phase_order 排序
type BundlePhase struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	BundleID  string `json:"bundle_id" gorm:"size:32;not null;index;uniqueIndex:uq_phase_order,priority:1"`
	ProductID string `json:"product_id" gorm:"size:32;not null"`

	ExpectedCount int `json:"expected_count" gorm:"not null"`
	ScannedCount  int `json:"scanned_count" gorm:"not null;default:0"`
	PhaseOrder    int `json:"phase_order" gorm:"not null;uniqueIndex:uq_phase_order,priority:2"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BundlePhase) TableName() string {
	return "bundle_phases"
}

// IsComplete 阶段扫描是否已满
func (p *BundlePhase) IsComplete() bool {
	return p.ScannedCount >= p.ExpectedCount
}
