package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apppayment "github.com/rentledger/backend/internal/application/payment"
	"github.com/rentledger/backend/internal/domain/payment"
	"github.com/rentledger/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// PaymentHandler handles payment lifecycle endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *apppayment.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *apppayment.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// RecordPaymentRequest represents a manual payment entry payload
type RecordPaymentRequest struct {
	StayID string          `json:"stay_id" binding:"required,uuid"`
	Kind   string          `json:"kind" binding:"required,oneof=RENT UTILITY UNSPECIFIED"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Method string          `json:"method" binding:"required,oneof=BANK_TRANSFER SBP CARD CASH OTHER"`
	PaidAt time.Time       `json:"paid_at" binding:"required"`
	Note   string          `json:"note" binding:"max=2000"`
}

// Record registers a manually entered payment awaiting confirmation
// POST /api/v1/payments
func (h *PaymentHandler) Record(c *gin.Context) {
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	p, err := h.paymentService.RecordPayment(c.Request.Context(), apppayment.RecordPaymentRequest{
		StayID: uuid.MustParse(req.StayID),
		Kind:   payment.Kind(req.Kind),
		Amount: req.Amount,
		Method: payment.Method(req.Method),
		PaidAt: req.PaidAt,
		Note:   req.Note,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, p)
}

// Confirm acknowledges the money and allocates it oldest debt first
// POST /api/v1/payments/:id/confirm
func (h *PaymentHandler) Confirm(c *gin.Context) {
	paymentID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	adminID, err := getAdminID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid admin identity")
		return
	}

	result, err := h.paymentService.ConfirmPayment(c.Request.Context(), paymentID, adminID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// RejectPaymentRequest represents a rejection payload
type RejectPaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=2000"`
}

// Reject declines a pending payment
// POST /api/v1/payments/:id/reject
func (h *PaymentHandler) Reject(c *gin.Context) {
	paymentID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	var req RejectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	adminID, err := getAdminID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid admin identity")
		return
	}

	p, err := h.paymentService.RejectPayment(c.Request.Context(), paymentID, adminID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// CorrectAmountRequest represents an amount correction payload
type CorrectAmountRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// CorrectAmount fixes the amount of a payment that has not been
// confirmed yet
// PUT /api/v1/payments/:id/amount
func (h *PaymentHandler) CorrectAmount(c *gin.Context) {
	paymentID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	var req CorrectAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	p, err := h.paymentService.CorrectPaymentAmount(c.Request.Context(), paymentID, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// ReversePaymentRequest represents a reversal payload
type ReversePaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=2000"`
}

// Reverse backs a confirmed payment out with compensating allocation
// reversals; history is kept for audit
// POST /api/v1/payments/:id/reverse
func (h *PaymentHandler) Reverse(c *gin.Context) {
	paymentID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	var req ReversePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	p, err := h.paymentService.ReversePayment(c.Request.Context(), paymentID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// Get returns a payment with its allocations
// GET /api/v1/payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	paymentID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	p, err := h.paymentService.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// ListPaymentsRequest represents payment list query parameters
type ListPaymentsRequest struct {
	dto.ListRequest
	Kind       string     `form:"kind" binding:"omitempty,oneof=RENT UTILITY UNSPECIFIED"`
	Status     string     `form:"status" binding:"omitempty,oneof=PENDING_MANUAL CONFIRMED REJECTED"`
	Provenance string     `form:"provenance" binding:"omitempty,oneof=MANUAL RECEIPT"`
	FromDate   *time.Time `form:"from_date"`
	ToDate     *time.Time `form:"to_date"`
}

func (r *ListPaymentsRequest) toFilter() payment.PaymentFilter {
	filter := payment.PaymentFilter{Filter: sharedFilter(r.ListRequest)}
	if r.Kind != "" {
		kind := payment.Kind(r.Kind)
		filter.Kind = &kind
	}
	if r.Status != "" {
		status := payment.Status(r.Status)
		filter.Status = &status
	}
	if r.Provenance != "" {
		provenance := payment.Provenance(r.Provenance)
		filter.Provenance = &provenance
	}
	filter.FromDate = r.FromDate
	filter.ToDate = r.ToDate
	return filter
}

// ListByStay returns the payments of a stay matching the query
// GET /api/v1/stays/:id/payments
func (h *PaymentHandler) ListByStay(c *gin.Context) {
	stayID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid stay ID")
		return
	}

	var req ListPaymentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	payments, err := h.paymentService.ListPayments(c.Request.Context(), stayID, req.toFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payments)
}

// ListPending returns payments awaiting admin confirmation
// GET /api/v1/payments/pending
func (h *PaymentHandler) ListPending(c *gin.Context) {
	var req ListPaymentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	payments, err := h.paymentService.ListPending(c.Request.Context(), req.toFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payments)
}
