package handler

import (
	"fee-engine/internal/adapter/http/dto"
	"fee-engine/internal/adapter/provider"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// ProviderHandler receives asynchronous status pushes from payment providers.
type ProviderHandler struct {
	reconcileSvc ports.ReconcileService
}

// NewProviderHandler creates a new ProviderHandler.
func NewProviderHandler(reconcileSvc ports.ReconcileService) *ProviderHandler {
	return &ProviderHandler{reconcileSvc: reconcileSvc}
}

// Update handles POST /api/v1/providers/:provider/updates.
func (h *ProviderHandler) Update(c *gin.Context) {
	var req dto.ProviderUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.reconcileSvc.ApplyProviderUpdate(c.Request.Context(), c.Param("provider"), req.ProviderRef, provider.ParseStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{
		"reference": tx.Reference,
		"status":    tx.Status,
	})
}
