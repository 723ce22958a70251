package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/application/tenancy"
	domaintenancy "github.com/rentledger/backend/internal/domain/tenancy"
	"github.com/rentledger/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// StayHandler handles stay management endpoints
type StayHandler struct {
	BaseHandler
	stayService *tenancy.StayService
}

// NewStayHandler creates a new StayHandler
func NewStayHandler(stayService *tenancy.StayService) *StayHandler {
	return &StayHandler{stayService: stayService}
}

// CreateStayRequest represents the create stay payload
type CreateStayRequest struct {
	UnitID        string          `json:"unit_id" binding:"required,uuid"`
	UnitLabel     string          `json:"unit_label" binding:"required,max=200"`
	TenantName    string          `json:"tenant_name" binding:"required,max=200"`
	DateFrom      time.Time       `json:"date_from" binding:"required"`
	RentAmount    decimal.Decimal `json:"rent_amount" binding:"required"`
	RentDueDay    int             `json:"rent_due_day" binding:"required,min=1,max=28"`
	UtilityDueDay int             `json:"utility_due_day" binding:"required,min=1,max=28"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Note          string          `json:"note" binding:"max=2000"`
}

// Create registers a new stay
// POST /api/v1/stays
func (h *StayHandler) Create(c *gin.Context) {
	var req CreateStayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	stay, err := h.stayService.CreateStay(c.Request.Context(), tenancy.CreateStayRequest{
		UnitID:        uuid.MustParse(req.UnitID),
		UnitLabel:     req.UnitLabel,
		TenantName:    req.TenantName,
		DateFrom:      req.DateFrom,
		RentAmount:    req.RentAmount,
		RentDueDay:    req.RentDueDay,
		UtilityDueDay: req.UtilityDueDay,
		TaxRate:       req.TaxRate,
		Note:          req.Note,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, stay)
}

// Get returns a stay by ID
// GET /api/v1/stays/:id
func (h *StayHandler) Get(c *gin.Context) {
	stayID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid stay ID")
		return
	}

	stay, err := h.stayService.GetStay(c.Request.Context(), stayID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stay)
}

// ListStaysRequest represents stay list query parameters
type ListStaysRequest struct {
	dto.ListRequest
	UnitID string `form:"unit_id" binding:"omitempty,uuid"`
	Status string `form:"status" binding:"omitempty,oneof=ACTIVE ARCHIVED"`
}

// List returns stays matching the query
// GET /api/v1/stays
func (h *StayHandler) List(c *gin.Context) {
	var req ListStaysRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	filter := domaintenancy.StayFilter{
		Filter: sharedFilter(req.ListRequest),
	}
	if req.UnitID != "" {
		unitID := uuid.MustParse(req.UnitID)
		filter.UnitID = &unitID
	}
	if req.Status != "" {
		status := domaintenancy.StayStatus(req.Status)
		filter.Status = &status
	}

	stays, err := h.stayService.ListStays(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stays)
}

// UpdateRentTermsRequest represents a rent terms change payload
type UpdateRentTermsRequest struct {
	RentAmount decimal.Decimal `json:"rent_amount" binding:"required"`
	TaxRate    decimal.Decimal `json:"tax_rate"`
}

// UpdateRentTerms changes the stay's rent amount and tax rate
// PUT /api/v1/stays/:id/rent-terms
func (h *StayHandler) UpdateRentTerms(c *gin.Context) {
	stayID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid stay ID")
		return
	}

	var req UpdateRentTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	stay, err := h.stayService.UpdateRentTerms(c.Request.Context(), tenancy.UpdateRentTermsRequest{
		StayID:     stayID,
		RentAmount: req.RentAmount,
		TaxRate:    req.TaxRate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stay)
}

// AddOccupantRequest represents an add occupant payload
type AddOccupantRequest struct {
	Name       string `json:"name" binding:"required,max=200"`
	Phone      string `json:"phone" binding:"max=30"`
	TelegramID int64  `json:"telegram_id"`
	Role       string `json:"role" binding:"omitempty,oneof=PRIMARY CO_TENANT"`
}

// AddOccupant adds an occupant to the stay
// POST /api/v1/stays/:id/occupants
func (h *StayHandler) AddOccupant(c *gin.Context) {
	stayID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid stay ID")
		return
	}

	var req AddOccupantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	role := domaintenancy.OccupantRoleCoTenant
	if req.Role != "" {
		role = domaintenancy.OccupantRole(req.Role)
	}

	stay, err := h.stayService.AddOccupant(c.Request.Context(), tenancy.AddOccupantRequest{
		StayID:     stayID,
		Name:       req.Name,
		Phone:      req.Phone,
		TelegramID: req.TelegramID,
		Role:       role,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stay)
}

// RemoveOccupant removes an occupant from the stay
// DELETE /api/v1/stays/:id/occupants/:occupantID
func (h *StayHandler) RemoveOccupant(c *gin.Context) {
	stayID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid stay ID")
		return
	}
	occupantID, ok := parseUUIDParam(c, "occupantID")
	if !ok {
		h.BadRequest(c, "Invalid occupant ID")
		return
	}

	stay, err := h.stayService.RemoveOccupant(c.Request.Context(), stayID, occupantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stay)
}

// Archive closes a stay; its financial history stays readable
// POST /api/v1/stays/:id/archive
func (h *StayHandler) Archive(c *gin.Context) {
	stayID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid stay ID")
		return
	}

	stay, err := h.stayService.ArchiveStay(c.Request.Context(), stayID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stay)
}
