package handler

import (
	"fee-engine/internal/adapter/http/dto"
	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet balances and fee quotes.
type WalletHandler struct {
	reportingSvc ports.ReportingService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(reportingSvc ports.ReportingService) *WalletHandler {
	return &WalletHandler{reportingSvc: reportingSvc}
}

// GetWallet handles GET /api/v1/wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	businessID, ok := currentBusiness(c)
	if !ok {
		return
	}

	wallet, err := h.reportingSvc.GetWallet(c.Request.Context(), businessID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, wallet)
}

// QuoteFee handles POST /api/v1/fees/quote.
func (h *WalletHandler) QuoteFee(c *gin.Context) {
	businessID, ok := currentBusiness(c)
	if !ok {
		return
	}

	var req dto.FeeQuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	breakdown, err := h.reportingSvc.QuoteFee(c.Request.Context(), ports.FeeQuote{
		BusinessID: businessID,
		Provider:   req.Provider,
		Category:   domain.Category(req.Category),
		Kind:       domain.ChargeKind(req.Kind),
		Amount:     *req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, breakdown)
}
