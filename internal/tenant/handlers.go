package tenant

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skyhook-dev/skyhook/internal/validation"
)

// Handler provides HTTP endpoints for workspace management.
type Handler struct {
	service *Service
}

// NewHandler creates a new workspace handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the workspace routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/workspaces", h.CreateWorkspace)

	ws := r.Group("/workspaces", validation.TenantIDParamMiddleware())
	ws.GET("/:id", h.GetWorkspace)
	ws.GET("/:id/credits", h.GetCredits)
	ws.POST("/:id/suspend", h.SuspendWorkspace)
	ws.POST("/:id/resume", h.ResumeWorkspace)
	ws.POST("/:id/tier", h.ChangeTier)
	ws.DELETE("/:id", h.DeleteWorkspace)
}

// CreateWorkspace handles POST /v1/workspaces
func (h *Handler) CreateWorkspace(c *gin.Context) {
	var req struct {
		OwnerUserID    string  `json:"ownerUserId" binding:"required"`
		OwnerEmail     string  `json:"ownerEmail" binding:"required"`
		TierName       string  `json:"tierName"`
		CurrentBalance float64 `json:"currentBalance"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "ownerUserId and ownerEmail required"})
		return
	}

	req.OwnerUserID = strings.TrimSpace(req.OwnerUserID)
	req.OwnerEmail = strings.TrimSpace(req.OwnerEmail)
	if errs := validation.Validate(
		validation.ValidUserID("ownerUserId", req.OwnerUserID),
		validation.ValidEmail("ownerEmail", req.OwnerEmail),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "details": errs})
		return
	}

	t, verdict, err := h.service.Provision(c.Request.Context(), ProvisionRequest{
		OwnerUserID:    req.OwnerUserID,
		OwnerEmail:     req.OwnerEmail,
		TierName:       req.TierName,
		CurrentBalance: req.CurrentBalance,
	})
	if err != nil {
		if errors.Is(err, ErrOwnerHasTenant) {
			c.JSON(http.StatusConflict, gin.H{"error": "owner_has_workspace", "message": "owner already has a workspace"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "provision_failed", "message": err.Error()})
		return
	}
	if !verdict.Allowed {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":           "insufficient_balance",
			"tierName":        verdict.TierName,
			"requiredMinimum": verdict.RequiredMinimum,
			"currentBalance":  verdict.CurrentBalance,
			"shortfall":       verdict.Shortfall,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tenantId":     t.ID,
		"url":          t.URL,
		"namespace":    t.Namespace,
		"tierName":     t.Tier.Name,
		"status":       t.Status,
		"featureFlags": t.Tier.Feature,
		"limits":       t.Tier.Quotas,
		"apiKey":       t.Secrets.APIKey,
		"warning":      "Store this API key securely. It will not be shown again.",
	})
}

// GetWorkspace handles GET /v1/workspaces/:id
func (h *Handler) GetWorkspace(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// GetCredits handles GET /v1/workspaces/:id/credits?balance=N
func (h *Handler) GetCredits(c *gin.Context) {
	balance, err := strconv.ParseFloat(c.Query("balance"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_balance", "message": "balance query parameter must be a number"})
		return
	}

	status, err := h.service.CreditStatus(c.Request.Context(), c.Param("id"), balance)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// SuspendWorkspace handles POST /v1/workspaces/:id/suspend
func (h *Handler) SuspendWorkspace(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req) // reason is optional

	t, err := h.service.Suspend(c.Request.Context(), c.Param("id"),
		validation.SanitizeString(req.Reason, 200))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenantId":         t.ID,
		"status":           t.Status,
		"suspendReason":    t.SuspendReason,
		"finalConsumption": t.FinalConsumption,
	})
}

// ResumeWorkspace handles POST /v1/workspaces/:id/resume
func (h *Handler) ResumeWorkspace(c *gin.Context) {
	t, err := h.service.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenantId": t.ID, "status": t.Status})
}

// ChangeTier handles POST /v1/workspaces/:id/tier
func (h *Handler) ChangeTier(c *gin.Context) {
	var req struct {
		TierName       string  `json:"tierName" binding:"required"`
		CurrentBalance float64 `json:"currentBalance"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "tierName required"})
		return
	}

	t, verdict, err := h.service.UpgradeTier(c.Request.Context(), c.Param("id"), req.TierName, req.CurrentBalance)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !verdict.Allowed {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":           "insufficient_balance",
			"tierName":        verdict.TierName,
			"requiredMinimum": verdict.RequiredMinimum,
			"currentBalance":  verdict.CurrentBalance,
			"shortfall":       verdict.Shortfall,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenantId":         t.ID,
		"tierName":         t.Tier.Name,
		"status":           t.Status,
		"featureFlags":     t.Tier.Feature,
		"limits":           t.Tier.Quotas,
		"finalConsumption": t.FinalConsumption,
	})
}

// DeleteWorkspace handles DELETE /v1/workspaces/:id
func (h *Handler) DeleteWorkspace(c *gin.Context) {
	t, err := h.service.Deprovision(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenantId":         t.ID,
		"status":           t.Status,
		"finalConsumption": t.FinalConsumption,
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "workspace not found"})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
