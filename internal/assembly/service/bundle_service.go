package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/packhouse/internal/assembly/entity"
	"github.com/bitfantasy/packhouse/internal/assembly/repository"
	"github.com/google/uuid"
)

// BundleService 捆包与池码的后台维护：建单、列表、删除、池码补给
type BundleService struct {
	bundles  *repository.BundleRepository
	phases   *repository.PhaseRepository
	pool     *repository.QRPoolRepository
	products *repository.ProductRepository
}

func NewBundleService(repos *repository.Repositories) *BundleService {
	return &BundleService{
		bundles:  repos.Bundle,
		phases:   repos.Phase,
		pool:     repos.QRPool,
		products: repos.Product,
	}
}

// CreatePhaseRequest 建单时的一个阶段
type CreatePhaseRequest struct {
	ProductID     string `json:"product_id" binding:"required"`
	ExpectedCount int    `json:"expected_count" binding:"required,gt=0"`
}

// CreateBundleRequest 建单请求，阶段按给定顺序装配
type CreateBundleRequest struct {
	Name   string               `json:"name" binding:"required"`
	Phases []CreatePhaseRequest `json:"phases" binding:"required,min=1,dive"`
}

// CreateBundle 创建捆包及阶段（同一事务），生成捆包自身的 QR 码
func (s *BundleService) CreateBundle(ctx context.Context, tenantID, userID string, req *CreateBundleRequest) (*entity.Bundle, error) {
	for i, p := range req.Phases {
		if p.ExpectedCount <= 0 {
			return nil, preconditionf("phase %d: expected_count must be positive", i)
		}
		if _, err := s.products.FindByID(ctx, tenantID, p.ProductID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, notFoundf("phase %d: product %s not found", i, p.ProductID)
			}
			return nil, err
		}
	}

	bundle := &entity.Bundle{
		ID:        newID(),
		TenantID:  tenantID,
		Name:      req.Name,
		QRCode:    generateBundleCode(),
		Status:    entity.BundleStatusPending,
		CreatedBy: userID,
	}
	phases := make([]entity.BundlePhase, 0, len(req.Phases))
	for i, p := range req.Phases {
		phases = append(phases, entity.BundlePhase{
			ID:            newID(),
			BundleID:      bundle.ID,
			ProductID:     p.ProductID,
			ExpectedCount: p.ExpectedCount,
			PhaseOrder:    i,
		})
	}

	if err := s.bundles.CreateWithPhases(ctx, bundle, phases); err != nil {
		return nil, err
	}
	bundle.Phases = phases
	return bundle, nil
}

// ListBundles 租户下的捆包列表
func (s *BundleService) ListBundles(ctx context.Context, params repository.BundleListParams) ([]entity.Bundle, int64, error) {
	return s.bundles.List(ctx, params)
}

// DeleteBundle 只允许删除 pending 的捆包，开始装配后只能走完流程
func (s *BundleService) DeleteBundle(ctx context.Context, tenantID, bundleID string) error {
	bundle, err := s.bundles.FindByID(ctx, tenantID, bundleID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundf("bundle %s not found", bundleID)
	}
	if err != nil {
		return err
	}
	if bundle.Status != entity.BundleStatusPending {
		return preconditionf("bundle %s is %s, only pending bundles can be deleted", bundle.ID, bundle.Status)
	}

	affected, err := s.bundles.DeletePending(ctx, tenantID, bundleID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return conflictf("bundle %s no longer pending", bundleID)
	}
	return nil
}

// RegisterPoolCodes 批量注册池码。重复码（含租户内已存在的）整批拒绝。
func (s *BundleService) RegisterPoolCodes(ctx context.Context, tenantID string, codes []string) ([]entity.QRPoolEntry, error) {
	seen := make(map[string]struct{}, len(codes))
	entries := make([]entity.QRPoolEntry, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, preconditionf("empty qr code in batch")
		}
		if _, dup := seen[code]; dup {
			return nil, conflictf("duplicate qr code %q in batch", code)
		}
		seen[code] = struct{}{}
		entries = append(entries, entity.QRPoolEntry{
			ID:       newID(),
			TenantID: tenantID,
			Code:     code,
			Status:   entity.QRPoolStatusAvailable,
		})
	}
	if err := s.pool.BatchCreate(ctx, entries); err != nil {
		// 唯一索引兜底：码在租户内已注册过
		return nil, conflictf("register pool codes: %v", err)
	}
	return entries, nil
}

// PoolStats 池码余量统计
type PoolStats struct {
	Available int64 `json:"available"`
	Used      int64 `json:"used"`
}

func (s *BundleService) GetPoolStats(ctx context.Context, tenantID string) (*PoolStats, error) {
	available, used, err := s.pool.Stats(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &PoolStats{Available: available, Used: used}, nil
}

func generateBundleCode() string {
	return fmt.Sprintf("BDL-%s", strings.ToUpper(uuid.New().String()[:8]))
}
