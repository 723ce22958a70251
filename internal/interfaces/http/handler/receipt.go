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

// ReceiptHandler handles receipt intake and lookup endpoints
type ReceiptHandler struct {
	BaseHandler
	paymentService *apppayment.PaymentService
	fileService    *apppayment.ReceiptFileService
}

// NewReceiptHandler creates a new ReceiptHandler
func NewReceiptHandler(paymentService *apppayment.PaymentService, fileService *apppayment.ReceiptFileService) *ReceiptHandler {
	return &ReceiptHandler{paymentService: paymentService, fileService: fileService}
}

// IntakeReceiptRequest represents an uploaded receipt payload. The
// idempotency key makes retried uploads safe: a replay returns the
// original receipt and payment instead of creating new ones.
type IntakeReceiptRequest struct {
	StayID         string           `json:"stay_id" binding:"required,uuid"`
	FileID         string           `json:"file_id" binding:"required,max=500"`
	IdempotencyKey string           `json:"idempotency_key" binding:"required,max=200"`
	Kind           string           `json:"kind" binding:"omitempty,oneof=RENT UTILITY UNSPECIFIED"`
	OCRText        string           `json:"ocr_text"`
	OCRConfidence  float64          `json:"ocr_confidence" binding:"min=0,max=1"`
	ParsedAmount   *decimal.Decimal `json:"parsed_amount"`
	ParsedDate     *time.Time       `json:"parsed_date"`
	ParsedReceiver string           `json:"parsed_receiver" binding:"max=500"`
	ParsedPurpose  string           `json:"parsed_purpose" binding:"max=500"`
}

// Intake records an uploaded receipt and derives a pending payment from
// its parsed fields
// POST /api/v1/receipts
func (h *ReceiptHandler) Intake(c *gin.Context) {
	var req IntakeReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	kind := payment.KindUnspecified
	if req.Kind != "" {
		kind = payment.Kind(req.Kind)
	}

	result, err := h.paymentService.IntakeReceipt(c.Request.Context(), apppayment.IntakeReceiptRequest{
		StayID:         uuid.MustParse(req.StayID),
		FileID:         req.FileID,
		IdempotencyKey: req.IdempotencyKey,
		Kind:           kind,
		OCRText:        req.OCRText,
		OCRConfidence:  req.OCRConfidence,
		ParsedAmount:   req.ParsedAmount,
		ParsedDate:     req.ParsedDate,
		ParsedReceiver: req.ParsedReceiver,
		ParsedPurpose:  req.ParsedPurpose,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.Duplicate {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// UploadURLRequest asks for a presigned URL to upload a receipt image
type UploadURLRequest struct {
	StayID      string `json:"stay_id" binding:"required,uuid"`
	ContentType string `json:"content_type" binding:"omitempty,max=100"`
}

// UploadURL issues a presigned upload URL. The client uploads the image
// there, then submits intake with the returned file ID.
// POST /api/v1/receipts/upload-url
func (h *ReceiptHandler) UploadURL(c *gin.Context) {
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ticket, err := h.fileService.NewUploadURL(c.Request.Context(), uuid.MustParse(req.StayID), req.ContentType)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, ticket)
}

// FileURL returns a presigned download URL for the image behind a receipt
// GET /api/v1/receipts/:id/file
func (h *ReceiptHandler) FileURL(c *gin.Context) {
	receiptID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid receipt ID")
		return
	}

	link, err := h.fileService.DownloadURL(c.Request.Context(), receiptID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, link)
}

// Get returns a receipt by ID
// GET /api/v1/receipts/:id
func (h *ReceiptHandler) Get(c *gin.Context) {
	receiptID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid receipt ID")
		return
	}

	receipt, err := h.paymentService.GetReceipt(c.Request.Context(), receiptID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, receipt)
}

// ListByStay returns the receipts uploaded for a stay
// GET /api/v1/stays/:id/receipts
func (h *ReceiptHandler) ListByStay(c *gin.Context) {
	stayID, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid stay ID")
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	receipts, err := h.paymentService.ListReceipts(c.Request.Context(), stayID, sharedFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, receipts)
}
