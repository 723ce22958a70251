package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/rentledger/backend/internal/application/balance"
)

// BalanceHandler handles balance reporting endpoints
type BalanceHandler struct {
	BaseHandler
	balanceService *balance.BalanceService
}

// NewBalanceHandler creates a new BalanceHandler
func NewBalanceHandler(balanceService *balance.BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceService: balanceService}
}

// GetByStay returns the derived balance of a stay
// GET /api/v1/stays/:id/balance
func (h *BalanceHandler) GetByStay(c *gin.Context) {
	stayID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid stay ID")
		return
	}

	result, err := h.balanceService.ComputeBalance(c.Request.Context(), stayID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// GetByUnit returns the balance of the active stay in a unit
// GET /api/v1/units/:id/balance
func (h *BalanceHandler) GetByUnit(c *gin.Context) {
	unitID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid unit ID")
		return
	}

	result, err := h.balanceService.ComputeBalanceForUnit(c.Request.Context(), unitID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// TotalOutstanding returns the outstanding debt summed over active stays
// GET /api/v1/balances/outstanding
func (h *BalanceHandler) TotalOutstanding(c *gin.Context) {
	total, err := h.balanceService.TotalOutstanding(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"total_outstanding": total})
}
