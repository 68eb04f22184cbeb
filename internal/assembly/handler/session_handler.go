package handler

import (
	"github.com/bitfantasy/packhouse/internal/assembly/service"
	"github.com/gin-gonic/gin"
)

// SessionHandler 装配会话接口
type SessionHandler struct {
	svc *service.AssemblyService
}

func NewSessionHandler(svc *service.AssemblyService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type startSessionRequest struct {
	BundleQRCode string `json:"bundle_qr_code" binding:"required"`
}

// Start 扫捆包码开始（或恢复）装配
// POST /api/v1/assembly/sessions
func (h *SessionHandler) Start(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "bundle_qr_code is required")
		return
	}

	session, err := h.svc.StartSession(c.Request.Context(), GetTenantID(c), GetUserID(c), req.BundleQRCode)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, session)
}

type scanRequest struct {
	QRCode string `json:"qr_code" binding:"required"`
}

// Scan 扫一枚单件码
// POST /api/v1/assembly/bundles/:id/scan
func (h *SessionHandler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "qr_code is required")
		return
	}

	result, err := h.svc.ScanQR(c.Request.Context(), GetTenantID(c), GetUserID(c), c.Param("id"), req.QRCode)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, result)
}

// ConfirmPhase 人工确认换阶段
// POST /api/v1/assembly/bundles/:id/confirm-phase
func (h *SessionHandler) ConfirmPhase(c *gin.Context) {
	result, err := h.svc.ConfirmPhaseTransition(c.Request.Context(), GetTenantID(c), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, result)
}

// Complete 完成装配
// POST /api/v1/assembly/bundles/:id/complete
func (h *SessionHandler) Complete(c *gin.Context) {
	if err := h.svc.CompleteAssembly(c.Request.Context(), GetTenantID(c), c.Param("id")); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"completed": true})
}

// GetSession 重连/出错后拉取最新会话对账
// GET /api/v1/assembly/bundles/:id/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.svc.GetSession(c.Request.Context(), GetTenantID(c), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, session)
}
