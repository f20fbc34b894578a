package handler

import (
	"fee-engine/internal/adapter/http/dto"
	"fee-engine/internal/adapter/http/middleware"
	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/apperror"
	"fee-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BusinessHandler handles business self-service endpoints.
type BusinessHandler struct {
	businessSvc ports.BusinessService
}

// NewBusinessHandler creates a new business handler.
func NewBusinessHandler(businessSvc ports.BusinessService) *BusinessHandler {
	return &BusinessHandler{businessSvc: businessSvc}
}

// GetProfile returns the authenticated business's profile.
func (h *BusinessHandler) GetProfile(c *gin.Context) {
	businessID, ok := currentBusiness(c)
	if !ok {
		return
	}

	profile, err := h.businessSvc.GetProfile(c.Request.Context(), businessID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, profile)
}

// UpdateWebhook replaces the business's webhook configuration.
func (h *BusinessHandler) UpdateWebhook(c *gin.Context) {
	businessID, ok := currentBusiness(c)
	if !ok {
		return
	}

	var req dto.UpdateWebhookRequest
	if !bindJSON(c, &req) {
		return
	}

	cfg := domain.WebhookConfig{URL: req.URL, Active: req.Active}
	if err := h.businessSvc.UpdateWebhook(c.Request.Context(), businessID, cfg); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, cfg)
}

// RotateSecret issues a new API secret; the old one stops working immediately.
func (h *BusinessHandler) RotateSecret(c *gin.Context) {
	businessID, ok := currentBusiness(c)
	if !ok {
		return
	}

	secret, err := h.businessSvc.RotateSecret(c.Request.Context(), businessID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RotateSecretResponse{SecretKey: secret})
}

func currentBusiness(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.BusinessID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
	}
	return id, ok
}
