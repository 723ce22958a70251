package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/payment"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReceiptRepository implements ReceiptRepository using GORM
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// FindByID finds a receipt by its ID
func (r *GormReceiptRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Receipt, error) {
	var model models.ReceiptModel
	if err := dbFrom(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("RECEIPT_NOT_FOUND", "Receipt not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey finds a receipt by its intake idempotency key
func (r *GormReceiptRepository) FindByIdempotencyKey(ctx context.Context, key string) (*payment.Receipt, error) {
	var model models.ReceiptModel
	if err := dbFrom(ctx, r.db).First(&model, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("RECEIPT_NOT_FOUND", "Receipt not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStay finds receipts for a stay, newest first by default
func (r *GormReceiptRepository) FindByStay(ctx context.Context, stayID uuid.UUID, filter shared.Filter) ([]payment.Receipt, error) {
	var receiptModels []models.ReceiptModel
	query := dbFrom(ctx, r.db).
		Model(&models.ReceiptModel{}).
		Where("stay_id = ?", stayID)

	orderBy := ValidateSortField(filter.OrderBy, ReceiptSortFields, "created_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Find(&receiptModels).Error; err != nil {
		return nil, err
	}

	receipts := make([]payment.Receipt, len(receiptModels))
	for i, model := range receiptModels {
		receipts[i] = *model.ToDomain()
	}
	return receipts, nil
}

// Save creates or updates a receipt
func (r *GormReceiptRepository) Save(ctx context.Context, receipt *payment.Receipt) error {
	model := models.ReceiptModelFromDomain(receipt)
	return dbFrom(ctx, r.db).Save(model).Error
}

// Ensure GormReceiptRepository implements ReceiptRepository
var _ payment.ReceiptRepository = (*GormReceiptRepository)(nil)
