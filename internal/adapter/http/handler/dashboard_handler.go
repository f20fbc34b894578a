package handler

import (
	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/apperror"
	"fee-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReportingHandler serves the read side of the ledger to the owning business.
type ReportingHandler struct {
	reportingSvc ports.ReportingService
}

// NewReportingHandler creates a new ReportingHandler.
func NewReportingHandler(reportingSvc ports.ReportingService) *ReportingHandler {
	return &ReportingHandler{reportingSvc: reportingSvc}
}

// GetTransaction handles GET /api/v1/transactions/:reference.
func (h *ReportingHandler) GetTransaction(c *gin.Context) {
	businessID, ok := currentBusiness(c)
	if !ok {
		return
	}

	tx, err := h.reportingSvc.GetTransaction(c.Request.Context(), businessID, c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, tx)
}

// ListWebhookDeliveries handles GET /api/v1/transactions/:reference/webhooks.
func (h *ReportingHandler) ListWebhookDeliveries(c *gin.Context) {
	businessID, ok := currentBusiness(c)
	if !ok {
		return
	}

	deliveries, err := h.reportingSvc.ListWebhookDeliveries(c.Request.Context(), businessID, c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if deliveries == nil {
		deliveries = []domain.WebhookDelivery{}
	}

	response.OK(c, deliveries)
}

// GetSettlement handles GET /api/v1/settlements/:id. Only the caller's own group
// of the run is returned.
func (h *ReportingHandler) GetSettlement(c *gin.Context) {
	businessID, ok := currentBusiness(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("settlement id must be a UUID"))
		return
	}

	history, err := h.reportingSvc.GetSettlement(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	for _, group := range history.Groups {
		if group.BusinessID == businessID {
			response.OK(c, gin.H{
				"id":         history.ID,
				"run_id":     history.RunID,
				"created_at": history.CreatedAt,
				"settlement": group,
			})
			return
		}
	}
	response.Error(c, apperror.ErrNotFound("settlement"))
}
