package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appprovider "github.com/rentledger/backend/internal/application/provider"
	"github.com/rentledger/backend/internal/domain/provider"
	"github.com/rentledger/backend/internal/interfaces/http/dto"
)

// ProviderHandler handles utility provider and management company endpoints
type ProviderHandler struct {
	BaseHandler
	providerService *appprovider.ProviderService
}

// NewProviderHandler creates a new ProviderHandler
func NewProviderHandler(providerService *appprovider.ProviderService) *ProviderHandler {
	return &ProviderHandler{providerService: providerService}
}

// CreateProviderRequest represents a provider registration payload
type CreateProviderRequest struct {
	Name          string   `json:"name" binding:"required,max=200"`
	ServiceType   string   `json:"service_type" binding:"required,oneof=ELECTRICITY WATER GAS HEATING INTERNET MAINTENANCE OTHER"`
	Keywords      []string `json:"keywords"`
	INN           string   `json:"inn" binding:"max=12"`
	AccountNumber string   `json:"account_number" binding:"max=20"`
	BankName      string   `json:"bank_name" binding:"max=200"`
	Phone         string   `json:"phone" binding:"max=30"`
}

// Create registers a new utility provider
// POST /api/v1/providers
func (h *ProviderHandler) Create(c *gin.Context) {
	var req CreateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	p, err := h.providerService.CreateProvider(c.Request.Context(), appprovider.CreateProviderRequest{
		Name:          req.Name,
		ServiceType:   provider.ServiceType(req.ServiceType),
		Keywords:      req.Keywords,
		INN:           req.INN,
		AccountNumber: req.AccountNumber,
		BankName:      req.BankName,
		Phone:         req.Phone,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, p)
}

// UpdateProviderRequest represents a provider update payload
type UpdateProviderRequest struct {
	Keywords      []string `json:"keywords"`
	INN           string   `json:"inn" binding:"max=12"`
	AccountNumber string   `json:"account_number" binding:"max=20"`
	BankName      string   `json:"bank_name" binding:"max=200"`
	Phone         string   `json:"phone" binding:"max=30"`
}

// Update replaces a provider's payment details and keywords
// PUT /api/v1/providers/:id
func (h *ProviderHandler) Update(c *gin.Context) {
	providerID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid provider ID")
		return
	}

	var req UpdateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	p, err := h.providerService.UpdateProvider(c.Request.Context(), appprovider.UpdateProviderRequest{
		ProviderID:    providerID,
		Keywords:      req.Keywords,
		INN:           req.INN,
		AccountNumber: req.AccountNumber,
		BankName:      req.BankName,
		Phone:         req.Phone,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// Deactivate marks a provider inactive
// POST /api/v1/providers/:id/deactivate
func (h *ProviderHandler) Deactivate(c *gin.Context) {
	providerID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid provider ID")
		return
	}

	p, err := h.providerService.DeactivateProvider(c.Request.Context(), providerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// Get returns a provider by ID
// GET /api/v1/providers/:id
func (h *ProviderHandler) Get(c *gin.Context) {
	providerID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid provider ID")
		return
	}

	p, err := h.providerService.GetProvider(c.Request.Context(), providerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// List returns providers matching the query
// GET /api/v1/providers
func (h *ProviderHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	if c.Query("active") == "true" {
		providers, err := h.providerService.ListActiveProviders(c.Request.Context())
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, providers)
		return
	}

	providers, err := h.providerService.ListProviders(c.Request.Context(), sharedFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, providers)
}

// CreateManagementCompanyRequest represents a management company payload
type CreateManagementCompanyRequest struct {
	Name  string `json:"name" binding:"required,max=200"`
	INN   string `json:"inn" binding:"max=12"`
	Phone string `json:"phone" binding:"max=30"`
	Email string `json:"email" binding:"omitempty,email"`
}

// CreateCompany registers a new management company
// POST /api/v1/management-companies
func (h *ProviderHandler) CreateCompany(c *gin.Context) {
	var req CreateManagementCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	m, err := h.providerService.CreateManagementCompany(c.Request.Context(), appprovider.CreateManagementCompanyRequest{
		Name:  req.Name,
		INN:   req.INN,
		Phone: req.Phone,
		Email: req.Email,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, m)
}

// LinkProviderRequest represents a provider link payload
type LinkProviderRequest struct {
	ProviderID string `json:"provider_id" binding:"required,uuid"`
}

// LinkProvider associates a provider with a management company
// POST /api/v1/management-companies/:id/providers
func (h *ProviderHandler) LinkProvider(c *gin.Context) {
	companyID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid management company ID")
		return
	}

	var req LinkProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	m, err := h.providerService.LinkProvider(c.Request.Context(), companyID, uuid.MustParse(req.ProviderID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, m)
}

// UnlinkProvider removes a provider association
// DELETE /api/v1/management-companies/:id/providers/:providerID
func (h *ProviderHandler) UnlinkProvider(c *gin.Context) {
	companyID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid management company ID")
		return
	}
	providerID, ok := parseUUIDParam(c, "providerID")
	if !ok {
		h.BadRequest(c, "Invalid provider ID")
		return
	}

	m, err := h.providerService.UnlinkProvider(c.Request.Context(), companyID, providerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, m)
}

// GetCompany returns a management company by ID
// GET /api/v1/management-companies/:id
func (h *ProviderHandler) GetCompany(c *gin.Context) {
	companyID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid management company ID")
		return
	}

	m, err := h.providerService.GetManagementCompany(c.Request.Context(), companyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, m)
}

// ListCompanies returns management companies matching the query
// GET /api/v1/management-companies
func (h *ProviderHandler) ListCompanies(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	companies, err := h.providerService.ListManagementCompanies(c.Request.Context(), sharedFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, companies)
}
