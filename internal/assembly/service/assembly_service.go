package service

import (
	"context"
	"errors"

	"github.com/bitfantasy/packhouse/internal/assembly/entity"
	"github.com/bitfantasy/packhouse/internal/assembly/relay"
	"github.com/bitfantasy/packhouse/internal/assembly/repository"
	"gorm.io/gorm"
)

// AssemblyService 装配会话门面：开始/扫码/确认换阶段/完成/刷新。
// 请求间不共享内存状态，所有协调都压到数据库的条件写上。
type AssemblyService struct {
	db        *gorm.DB
	bundles   *repository.BundleRepository
	phases    *repository.PhaseRepository
	pool      *repository.QRPoolRepository
	inventory *repository.InventoryRepository
	products  *repository.ProductRepository
	relay     *relay.Relay
}

func NewAssemblyService(repos *repository.Repositories, db *gorm.DB) *AssemblyService {
	return &AssemblyService{
		db:        db,
		bundles:   repos.Bundle,
		phases:    repos.Phase,
		pool:      repos.QRPool,
		inventory: repos.Inventory,
		products:  repos.Product,
	}
}

// SetRelay 注入事件中继（可选，未注入则不推送）
func (s *AssemblyService) SetRelay(r *relay.Relay) {
	s.relay = r
}

// PhaseView 阶段视图，带商品展示名
type PhaseView struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	ExpectedCount int    `json:"expected_count"`
	ScannedCount  int    `json:"scanned_count"`
	PhaseOrder    int    `json:"phase_order"`
	IsComplete    bool   `json:"is_complete"`
}

// Session 捆包装配进度的完整视图
type Session struct {
	Bundle       *entity.Bundle `json:"bundle"`
	Phases       []PhaseView    `json:"phases"`
	CurrentPhase *PhaseView     `json:"current_phase"`
}

// ScanResult 单次扫码的结果
type ScanResult struct {
	PhaseID         string `json:"phase_id"`
	ProductID       string `json:"product_id"`
	ProductName     string `json:"product_name"`
	ScannedCount    int    `json:"scanned_count"`
	ExpectedCount   int    `json:"expected_count"`
	IsPhaseComplete bool   `json:"is_phase_complete"`
	// 所有阶段都已扫满，仅供界面提示，不会自动完成捆包
	IsAllComplete bool `json:"is_all_complete"`
}

// TransitionResult 确认换阶段的结果
type TransitionResult struct {
	PhaseIndex int  `json:"phase_index"`
	IsComplete bool `json:"is_complete"`
}

// StartSession 用捆包码开始（或恢复）装配会话。
// pending→assembling 只发生一次；已完成或已售出的捆包不能重新装配。
func (s *AssemblyService) StartSession(ctx context.Context, tenantID, userID, bundleQRCode string) (*Session, error) {
	bundle, err := s.bundles.FindByQRCode(ctx, tenantID, bundleQRCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("bundle %q not recognized", bundleQRCode)
	}
	if err != nil {
		return nil, err
	}

	switch bundle.Status {
	case entity.BundleStatusCompleted, entity.BundleStatusSold:
		return nil, conflictf("bundle %s already %s", bundle.ID, bundle.Status)
	}

	phases, err := s.phases.ListByBundle(ctx, bundle.ID)
	if err != nil {
		return nil, err
	}
	if len(phases) == 0 {
		return nil, preconditionf("bundle %s has no phases", bundle.ID)
	}

	if bundle.Status == entity.BundleStatusPending {
		affected, err := s.bundles.MarkAssembling(ctx, tenantID, bundle.ID, userID)
		if err != nil {
			return nil, err
		}
		// 0 行说明状态刚被别人改走，重读后按新状态处理
		if affected == 0 {
			bundle, err = s.bundles.FindByID(ctx, tenantID, bundle.ID)
			if err != nil {
				return nil, err
			}
			if bundle.Status != entity.BundleStatusAssembling {
				return nil, conflictf("bundle %s already %s", bundle.ID, bundle.Status)
			}
		} else {
			bundle, err = s.bundles.FindByID(ctx, tenantID, bundle.ID)
			if err != nil {
				return nil, err
			}
		}
	}

	return s.buildSession(ctx, tenantID, bundle, phases)
}

// GetSession 纯读：断线或出错后客户端用它对账
func (s *AssemblyService) GetSession(ctx context.Context, tenantID, bundleID string) (*Session, error) {
	bundle, err := s.bundles.FindByID(ctx, tenantID, bundleID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("bundle %s not found", bundleID)
	}
	if err != nil {
		return nil, err
	}
	phases, err := s.phases.ListByBundle(ctx, bundle.ID)
	if err != nil {
		return nil, err
	}
	return s.buildSession(ctx, tenantID, bundle, phases)
}

// ScanQR 消费一枚池码：翻转池码状态、写入库记录、当前阶段计数 +1，
// 三个效果在同一事务内要么全部生效要么全部回滚。
func (s *AssemblyService) ScanQR(ctx context.Context, tenantID, userID, bundleID, itemQRCode string) (*ScanResult, error) {
	bundle, err := s.bundles.FindByID(ctx, tenantID, bundleID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("bundle %s not found", bundleID)
	}
	if err != nil {
		return nil, err
	}
	if bundle.Status != entity.BundleStatusAssembling {
		return nil, preconditionf("bundle %s is %s, not assembling", bundle.ID, bundle.Status)
	}

	phase, err := s.phases.FindByOrder(ctx, bundle.ID, bundle.CurrentPhaseIndex)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, preconditionf("bundle %s has no phase at index %d", bundle.ID, bundle.CurrentPhaseIndex)
	}
	if err != nil {
		return nil, err
	}
	if phase.IsComplete() {
		return nil, preconditionf("phase %d already complete, confirm phase transition first", phase.PhaseOrder)
	}

	entry, err := s.pool.FindByCode(ctx, tenantID, itemQRCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("qr code %q not recognized", itemQRCode)
	}
	if err != nil {
		return nil, err
	}
	if entry.Status == entity.QRPoolStatusUsed {
		return nil, conflictf("qr code %q already used", itemQRCode)
	}

	var updated entity.BundlePhase
	var allComplete bool
	inventoryID := newID()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// available→used，检查和翻转同一条语句，0 行即已被消费
		affected, err := s.pool.Consume(tx, tenantID, itemQRCode)
		if err != nil {
			return err
		}
		if affected == 0 {
			return conflictf("qr code %q already used", itemQRCode)
		}

		if err := s.inventory.Create(tx, &entity.InventoryRecord{
			ID:         inventoryID,
			TenantID:   tenantID,
			QRCode:     itemQRCode,
			ProductID:  phase.ProductID,
			BundleID:   bundle.ID,
			Status:     entity.InventoryStatusInStock,
			SourceType: entity.InventorySourceTypeAssembly,
			CreatedBy:  userID,
		}); err != nil {
			return err
		}

		// scanned_count < expected_count 时才 +1，并发扫码由数据库线性化
		affected, err = s.phases.IncrementScanned(tx, phase.ID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return preconditionf("phase %d already at capacity", phase.PhaseOrder)
		}

		if err := tx.First(&updated, "id = ?", phase.ID).Error; err != nil {
			return err
		}

		var incomplete int64
		if err := tx.Model(&entity.BundlePhase{}).
			Where("bundle_id = ? AND scanned_count < expected_count", bundle.ID).
			Count(&incomplete).Error; err != nil {
			return err
		}
		allComplete = incomplete == 0
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrFailedPrecondition) {
			return nil, err
		}
		// 序列化/唯一键冲突等并发失败，单次扫码可安全重试
		return nil, transientf("scan transaction failed: %v", err)
	}

	result := &ScanResult{
		PhaseID:         updated.ID,
		ProductID:       updated.ProductID,
		ScannedCount:    updated.ScannedCount,
		ExpectedCount:   updated.ExpectedCount,
		IsPhaseComplete: updated.IsComplete(),
		IsAllComplete:   allComplete,
	}

	// 只读联查展示名，失败不影响扫码结果
	if product, err := s.products.FindByID(ctx, tenantID, updated.ProductID); err == nil {
		result.ProductName = product.Name
	}

	s.publish(ctx, relay.Event{
		Type:     relay.EventScanned,
		BundleID: bundle.ID,
		Payload: map[string]interface{}{
			"phase_order":       updated.PhaseOrder,
			"product_id":        updated.ProductID,
			"product_name":      result.ProductName,
			"scanned_count":     updated.ScannedCount,
			"expected_count":    updated.ExpectedCount,
			"is_phase_complete": result.IsPhaseComplete,
			"is_all_complete":   allComplete,
		},
	})

	return result, nil
}

// ConfirmPhaseTransition 人工确认换到下一阶段。最后一个阶段不再前移，
// 返回 is_complete=true 提示调用方去调 CompleteAssembly。
func (s *AssemblyService) ConfirmPhaseTransition(ctx context.Context, tenantID, bundleID string) (*TransitionResult, error) {
	bundle, err := s.bundles.FindByID(ctx, tenantID, bundleID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("bundle %s not found", bundleID)
	}
	if err != nil {
		return nil, err
	}

	total, err := s.phases.CountByBundle(ctx, bundle.ID)
	if err != nil {
		return nil, err
	}

	if bundle.CurrentPhaseIndex+1 >= int(total) {
		return &TransitionResult{PhaseIndex: bundle.CurrentPhaseIndex, IsComplete: true}, nil
	}

	affected, err := s.bundles.AdvancePhaseIndex(ctx, tenantID, bundle.ID, bundle.CurrentPhaseIndex)
	if err != nil {
		return nil, err
	}
	// 指针已被并发确认移走，过期客户端的重放不再生效
	if affected == 0 {
		return nil, conflictf("phase pointer of bundle %s moved concurrently", bundle.ID)
	}

	newIndex := bundle.CurrentPhaseIndex + 1
	s.publish(ctx, relay.Event{
		Type:     relay.EventPhaseComplete,
		BundleID: bundle.ID,
		Payload: map[string]interface{}{
			"phase_index": newIndex,
		},
	})

	return &TransitionResult{PhaseIndex: newIndex, IsComplete: false}, nil
}

// CompleteAssembly 服务端重新核对所有阶段都已扫满后才落完成态，
// 不信任客户端上报的进度。
func (s *AssemblyService) CompleteAssembly(ctx context.Context, tenantID, bundleID string) error {
	bundle, err := s.bundles.FindByID(ctx, tenantID, bundleID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundf("bundle %s not found", bundleID)
	}
	if err != nil {
		return err
	}

	switch bundle.Status {
	case entity.BundleStatusCompleted, entity.BundleStatusSold:
		return conflictf("bundle %s already %s", bundle.ID, bundle.Status)
	case entity.BundleStatusAssembling:
	default:
		return preconditionf("bundle %s is %s, not assembling", bundle.ID, bundle.Status)
	}

	incomplete, err := s.phases.CountIncomplete(ctx, bundle.ID)
	if err != nil {
		return err
	}
	if incomplete > 0 {
		return preconditionf("bundle %s has %d incomplete phases", bundle.ID, incomplete)
	}

	affected, err := s.bundles.MarkCompleted(ctx, tenantID, bundle.ID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return conflictf("bundle %s already completed", bundle.ID)
	}

	s.publish(ctx, relay.Event{
		Type:     relay.EventAssemblyComplete,
		BundleID: bundle.ID,
	})
	return nil
}

func (s *AssemblyService) buildSession(ctx context.Context, tenantID string, bundle *entity.Bundle, phases []entity.BundlePhase) (*Session, error) {
	productIDs := make([]string, 0, len(phases))
	for _, p := range phases {
		productIDs = append(productIDs, p.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, tenantID, productIDs)
	if err != nil {
		return nil, err
	}

	session := &Session{Bundle: bundle, Phases: make([]PhaseView, 0, len(phases))}
	for _, p := range phases {
		view := PhaseView{
			ID:            p.ID,
			ProductID:     p.ProductID,
			ProductName:   products[p.ProductID].Name,
			ExpectedCount: p.ExpectedCount,
			ScannedCount:  p.ScannedCount,
			PhaseOrder:    p.PhaseOrder,
			IsComplete:    p.IsComplete(),
		}
		session.Phases = append(session.Phases, view)
		if p.PhaseOrder == bundle.CurrentPhaseIndex {
			current := view
			session.CurrentPhase = &current
		}
	}
	return session, nil
}

func (s *AssemblyService) publish(ctx context.Context, event relay.Event) {
	if s.relay == nil {
		return
	}
	s.relay.Publish(ctx, event)
}
