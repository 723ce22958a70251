package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/application/billing"
	domainbilling "github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/rentledger/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// ChargeHandler handles charge and billing cycle endpoints
type ChargeHandler struct {
	BaseHandler
	billingService *billing.BillingService
}

// NewChargeHandler creates a new ChargeHandler
func NewChargeHandler(billingService *billing.BillingService) *ChargeHandler {
	return &ChargeHandler{billingService: billingService}
}

// EnsureRentChargeRequest represents a rent charge issuance payload
type EnsureRentChargeRequest struct {
	StayID string `json:"stay_id" binding:"required,uuid"`
	Period string `json:"period" binding:"required"`
}

// EnsureRentCharge issues the rent charge for a stay and period if it
// does not exist yet
// POST /api/v1/charges/rent
func (h *ChargeHandler) EnsureRentCharge(c *gin.Context) {
	var req EnsureRentChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	period, err := valueobject.ParsePeriod(req.Period)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	charge, err := h.billingService.EnsureRentCharge(c.Request.Context(), uuid.MustParse(req.StayID), period)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, charge)
}

// EnsureUtilityChargeRequest represents a utility charge issuance payload
type EnsureUtilityChargeRequest struct {
	StayID      string          `json:"stay_id" binding:"required,uuid"`
	ProviderID  string          `json:"provider_id" binding:"required,uuid"`
	Period      string          `json:"period" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description" binding:"max=500"`
}

// EnsureUtilityCharge issues a utility charge for a stay, period and
// provider if it does not exist yet
// POST /api/v1/charges/utility
func (h *ChargeHandler) EnsureUtilityCharge(c *gin.Context) {
	var req EnsureUtilityChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	period, err := valueobject.ParsePeriod(req.Period)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	charge, err := h.billingService.EnsureUtilityCharge(c.Request.Context(), billing.EnsureUtilityChargeRequest{
		StayID:      uuid.MustParse(req.StayID),
		ProviderID:  uuid.MustParse(req.ProviderID),
		Period:      period,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, charge)
}

// RunBillingCycleRequest represents a billing cycle run payload
type RunBillingCycleRequest struct {
	StayID string `json:"stay_id" binding:"omitempty,uuid"`
	Period string `json:"period" binding:"required"`
}

// RunBillingCycle issues rent charges and re-applies carried credit for
// one stay, or for every active stay when stay_id is omitted
// POST /api/v1/billing/cycle
func (h *ChargeHandler) RunBillingCycle(c *gin.Context) {
	var req RunBillingCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	period, err := valueobject.ParsePeriod(req.Period)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if req.StayID == "" {
		results, err := h.billingService.RunBillingCycleForAll(c.Request.Context(), period)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, results)
		return
	}

	result, err := h.billingService.RunBillingCycle(c.Request.Context(), uuid.MustParse(req.StayID), period)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// RecalculateRentRequest represents a retroactive rent recalculation payload
type RecalculateRentRequest struct {
	StayID     string `json:"stay_id" binding:"required,uuid"`
	FromPeriod string `json:"from_period" binding:"required"`
	ToPeriod   string `json:"to_period" binding:"required"`
}

// RecalculateRent replaces the rent charges of a period range with
// charges computed from the stay's current terms
// POST /api/v1/billing/recalculate
func (h *ChargeHandler) RecalculateRent(c *gin.Context) {
	var req RecalculateRentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	fromPeriod, err := valueobject.ParsePeriod(req.FromPeriod)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	toPeriod, err := valueobject.ParsePeriod(req.ToPeriod)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.billingService.RecalculateRent(c.Request.Context(), billing.RecalculateRentRequest{
		StayID:     uuid.MustParse(req.StayID),
		FromPeriod: fromPeriod,
		ToPeriod:   toPeriod,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// MarkChargePaidRequest represents a manual settlement payload
type MarkChargePaidRequest struct {
	Note string `json:"note" binding:"max=2000"`
}

// MarkPaid settles a charge's remaining debt with a synthetic confirmed
// payment attributed to the acting admin
// POST /api/v1/charges/:id/mark-paid
func (h *ChargeHandler) MarkPaid(c *gin.Context) {
	chargeID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid charge ID")
		return
	}

	var req MarkChargePaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	adminID, err := getAdminID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid admin identity")
		return
	}

	p, err := h.billingService.MarkChargePaid(c.Request.Context(), chargeID, adminID, req.Note)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// Get returns a charge by ID
// GET /api/v1/charges/:id
func (h *ChargeHandler) Get(c *gin.Context) {
	chargeID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid charge ID")
		return
	}

	charge, err := h.billingService.GetCharge(c.Request.Context(), chargeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, charge)
}

// ListChargesRequest represents charge list query parameters
type ListChargesRequest struct {
	dto.ListRequest
	Kind       string `form:"kind" binding:"omitempty,oneof=RENT UTILITY"`
	Status     string `form:"status" binding:"omitempty,oneof=PENDING PAID SUPERSEDED"`
	FromPeriod string `form:"from_period"`
	ToPeriod   string `form:"to_period"`
}

// ListByStay returns the charges of a stay matching the query
// GET /api/v1/stays/:id/charges
func (h *ChargeHandler) ListByStay(c *gin.Context) {
	stayID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid stay ID")
		return
	}

	var req ListChargesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	filter := domainbilling.ChargeFilter{Filter: sharedFilter(req.ListRequest)}
	if req.Kind != "" {
		kind := domainbilling.ChargeKind(req.Kind)
		filter.Kind = &kind
	}
	if req.Status != "" {
		status := domainbilling.ChargeStatus(req.Status)
		filter.Status = &status
	}
	if req.FromPeriod != "" {
		period, err := valueobject.ParsePeriod(req.FromPeriod)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		filter.FromPeriod = &period
	}
	if req.ToPeriod != "" {
		period, err := valueobject.ParsePeriod(req.ToPeriod)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		filter.ToPeriod = &period
	}

	charges, err := h.billingService.ListCharges(c.Request.Context(), stayID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, charges)
}
