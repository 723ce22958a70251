package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentledger/backend/internal/domain/payment"
	"github.com/rentledger/backend/internal/domain/shared"
)

// ReceiptFileStorage abstracts the object store holding receipt images
type ReceiptFileStorage interface {
	// GenerateUploadURL generates a presigned URL for uploading a file
	GenerateUploadURL(ctx context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error)

	// GenerateDownloadURL generates a presigned URL for downloading a file
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// DeleteObject deletes an object from storage
	DeleteObject(ctx context.Context, storageKey string) error

	// ObjectExists checks if an object exists in storage
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}

// ReceiptFileServiceConfig holds URL expiry settings
type ReceiptFileServiceConfig struct {
	UploadURLExpiry   time.Duration
	DownloadURLExpiry time.Duration
}

// DefaultReceiptFileServiceConfig returns the default configuration
func DefaultReceiptFileServiceConfig() ReceiptFileServiceConfig {
	return ReceiptFileServiceConfig{
		UploadURLExpiry:   15 * time.Minute,
		DownloadURLExpiry: 1 * time.Hour,
	}
}

// ReceiptFileService issues presigned URLs for receipt images. Clients
// upload the image first, then call intake with the returned file ID.
type ReceiptFileService struct {
	receiptRepo payment.ReceiptRepository
	storage     ReceiptFileStorage
	config      ReceiptFileServiceConfig
	logger      *zap.Logger
}

// NewReceiptFileService creates a new receipt file service
func NewReceiptFileService(
	receiptRepo payment.ReceiptRepository,
	storage ReceiptFileStorage,
	config ReceiptFileServiceConfig,
	logger *zap.Logger,
) *ReceiptFileService {
	return &ReceiptFileService{
		receiptRepo: receiptRepo,
		storage:     storage,
		config:      config,
		logger:      logger,
	}
}

// ReceiptUploadTicket holds a presigned upload URL and the file ID to
// reference in the subsequent intake call
type ReceiptUploadTicket struct {
	FileID    string    `json:"file_id"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReceiptFileLink holds a presigned download URL for a stored receipt image
type ReceiptFileLink struct {
	ReceiptID   uuid.UUID `json:"receipt_id"`
	FileID      string    `json:"file_id"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewUploadURL issues a presigned upload URL for a receipt image
func (s *ReceiptFileService) NewUploadURL(ctx context.Context, stayID uuid.UUID, contentType string) (*ReceiptUploadTicket, error) {
	if stayID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_STAY", "Stay ID cannot be empty")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileID := fmt.Sprintf("receipts/%s/%s", stayID, uuid.New())

	url, expiresAt, err := s.storage.GenerateUploadURL(ctx, fileID, contentType, s.config.UploadURLExpiry)
	if err != nil {
		s.logger.Error("Receipt upload URL generation failed",
			zap.String("stay_id", stayID.String()),
			zap.Error(err),
		)
		return nil, shared.NewConsistencyViolation("STORAGE_UNAVAILABLE", "Could not generate upload URL")
	}

	return &ReceiptUploadTicket{
		FileID:    fileID,
		UploadURL: url,
		ExpiresAt: expiresAt,
	}, nil
}

// DownloadURL issues a presigned download URL for the image behind a receipt
func (s *ReceiptFileService) DownloadURL(ctx context.Context, receiptID uuid.UUID) (*ReceiptFileLink, error) {
	receipt, err := s.receiptRepo.FindByID(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	exists, err := s.storage.ObjectExists(ctx, receipt.FileID)
	if err != nil {
		return nil, shared.NewConsistencyViolation("STORAGE_UNAVAILABLE", "Could not check receipt file")
	}
	if !exists {
		return nil, shared.NewNotFoundError("RECEIPT_FILE_NOT_FOUND",
			fmt.Sprintf("No stored file for receipt %s", receiptID))
	}

	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, receipt.FileID, s.config.DownloadURLExpiry)
	if err != nil {
		return nil, shared.NewConsistencyViolation("STORAGE_UNAVAILABLE", "Could not generate download URL")
	}

	return &ReceiptFileLink{
		ReceiptID:   receipt.ID,
		FileID:      receipt.FileID,
		DownloadURL: url,
		ExpiresAt:   expiresAt,
	}, nil
}
