package handler

import (
	"github.com/bitfantasy/packhouse/internal/assembly/repository"
	"github.com/bitfantasy/packhouse/internal/assembly/service"
	"github.com/gin-gonic/gin"
)

// BundleHandler 捆包与池码的后台维护接口
type BundleHandler struct {
	svc *service.BundleService
}

func NewBundleHandler(svc *service.BundleService) *BundleHandler {
	return &BundleHandler{svc: svc}
}

// Create 建捆包（含阶段）
// POST /api/v1/assembly/bundles
func (h *BundleHandler) Create(c *gin.Context) {
	var req service.CreateBundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	bundle, err := h.svc.CreateBundle(c.Request.Context(), GetTenantID(c), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, bundle)
}

// List 捆包列表
// GET /api/v1/assembly/bundles
func (h *BundleHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	bundles, total, err := h.svc.ListBundles(c.Request.Context(), repository.BundleListParams{
		TenantID: GetTenantID(c),
		Status:   c.Query("status"),
		Keyword:  c.Query("keyword"),
		Page:     page,
		Size:     pageSize,
	})
	if err != nil {
		InternalError(c, "list bundles failed: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": bundles,
		"pagination": Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: (int(total) + pageSize - 1) / pageSize,
		},
	})
}

// Delete 删除 pending 的捆包
// DELETE /api/v1/assembly/bundles/:id
func (h *BundleHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteBundle(c.Request.Context(), GetTenantID(c), c.Param("id")); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

type registerPoolRequest struct {
	Codes []string `json:"codes" binding:"required,min=1"`
}

// RegisterPoolCodes 批量注册单件池码
// POST /api/v1/assembly/qr-pool
func (h *BundleHandler) RegisterPoolCodes(c *gin.Context) {
	var req registerPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "codes is required")
		return
	}

	entries, err := h.svc.RegisterPoolCodes(c.Request.Context(), GetTenantID(c), req.Codes)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, gin.H{"registered": len(entries)})
}

// PoolStats 池码余量
// GET /api/v1/assembly/qr-pool/stats
func (h *BundleHandler) PoolStats(c *gin.Context) {
	stats, err := h.svc.GetPoolStats(c.Request.Context(), GetTenantID(c))
	if err != nil {
		InternalError(c, "pool stats failed: "+err.Error())
		return
	}
	Success(c, stats)
}
