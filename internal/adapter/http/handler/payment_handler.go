package handler

import (
	"encoding/json"

	"fee-engine/internal/adapter/http/dto"
	"fee-engine/internal/adapter/http/middleware"
	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/apperror"
	"fee-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles money movement: link charges, collections, payouts and refunds.
type PaymentHandler struct {
	chargeSvc     ports.ChargeService
	collectionSvc ports.CollectionService
	payoutSvc     ports.PayoutService
	refundSvc     ports.RefundService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(chargeSvc ports.ChargeService, collectionSvc ports.CollectionService, payoutSvc ports.PayoutService, refundSvc ports.RefundService) *PaymentHandler {
	return &PaymentHandler{
		chargeSvc:     chargeSvc,
		collectionSvc: collectionSvc,
		payoutSvc:     payoutSvc,
		refundSvc:     refundSvc,
	}
}

// ChargeLink handles POST /api/v1/links/:slug/charge.
func (h *PaymentHandler) ChargeLink(c *gin.Context) {
	var req dto.LinkChargeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.chargeSvc.ChargeLink(c.Request.Context(), ports.LinkChargeRequest{
		Slug:     c.Param("slug"),
		Amount:   req.Amount,
		Quantity: req.Quantity,
		Card: domain.Card{
			Number:      req.Card.Number,
			CVV:         req.Card.CVV,
			ExpiryMonth: req.Card.ExpiryMonth,
			ExpiryYear:  req.Card.ExpiryYear,
			PIN:         req.Card.PIN,
		},
		Customer: domain.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	tx := result.Transaction
	c.Set(middleware.CtxTransactionID, tx.ID)
	response.Created(c, dto.ChargeResponse{
		Reference: tx.Reference,
		Status:    tx.Status,
		Amount:    tx.Amount,
		Fee:       tx.Fee,
		Next:      result.Next,
	})
}

// Authorize handles POST /api/v1/charges/authorize.
func (h *PaymentHandler) Authorize(c *gin.Context) {
	var req dto.AuthorizeRequest
	if !bindJSON(c, &req) {
		return
	}

	next, err := h.chargeSvc.Authorize(c.Request.Context(), ports.AuthorizeRequest{
		Reference:    req.Reference,
		ValidateType: domain.AuthStep(req.ValidateType),
		Answer:       req.Answer,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, next)
}

// CreateCollection handles POST /api/v1/collections.
func (h *PaymentHandler) CreateCollection(c *gin.Context) {
	businessID, ok := currentBusiness(c)
	if !ok {
		return
	}

	var req dto.CollectionRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.collectionSvc.CreateVirtualAccount(c.Request.Context(), ports.CollectionRequest{
		BusinessID: businessID,
		Feature:    domain.Feature(req.Feature),
		Provider:   req.Provider,
		Amount:     *req.Amount,
		Currency:   req.Currency,
		Customer: domain.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	tx := result.Transaction
	c.Set(middleware.CtxTransactionID, tx.ID)
	response.Created(c, dto.CollectionResponse{
		Reference:     tx.Reference,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Fee:           tx.Fee,
		AccountNumber: result.Account.AccountNumber,
		AccountName:   result.Account.AccountName,
		BankName:      result.Account.BankName,
	})
}

// Payout handles POST /api/v1/payouts.
func (h *PaymentHandler) Payout(c *gin.Context) {
	businessID, ok := currentBusiness(c)
	if !ok {
		return
	}

	var req dto.PayoutRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.payoutSvc.Payout(c.Request.Context(), ports.PayoutRequest{
		BusinessID: businessID,
		Feature:    domain.FeaturePayout,
		Provider:   req.Provider,
		Amount:     *req.Amount,
		Currency:   req.Currency,
		Bank:       req.Bank.ToDomain(),
		Narration:  req.Narration,
		PIN:        req.PIN,
	})
	if tx != nil {
		c.Set(middleware.CtxTransactionID, tx.ID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, tx)
}

// CreateRefund handles POST /api/v1/refunds.
func (h *PaymentHandler) CreateRefund(c *gin.Context) {
	businessID, ok := currentBusiness(c)
	if !ok {
		return
	}

	var req dto.RefundRequest
	if !bindJSON(c, &req) {
		return
	}

	in := ports.RefundRequest{
		BusinessID: businessID,
		Reference:  req.Reference,
		Option:     domain.RefundOption(req.Option),
		Type:       domain.RefundType(req.Type),
		Amount:     req.Amount,
		Reason:     req.Reason,
	}
	if req.Bank != nil {
		bank := req.Bank.ToDomain()
		in.Bank = &bank
	}

	refund, err := h.refundSvc.CreateRefund(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}

	if refund.PayoutTxID != nil {
		c.Set(middleware.CtxTransactionID, *refund.PayoutTxID)
	}
	response.Created(c, refund)
}

// CompleteRefund handles POST /api/v1/refunds/:id/complete.
func (h *PaymentHandler) CompleteRefund(c *gin.Context) {
	businessID, ok := currentBusiness(c)
	if !ok {
		return
	}
	refundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("refund id must be a UUID"))
		return
	}

	refund, err := h.refundSvc.CompleteRefund(c.Request.Context(), businessID, refundID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, refund)
}

// linkChargeUser deduplicates public link charges per link and payer.
func linkChargeUser(c *gin.Context, body []byte) domain.RequestUser {
	var envelope struct {
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
	}
	_ = json.Unmarshal(body, &envelope)
	email := envelope.Customer.Email
	if email == "" {
		email = c.ClientIP()
	}
	return domain.RequestUser{Email: c.Param("slug") + ":" + email}
}
