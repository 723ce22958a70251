package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/payment"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements PaymentRepository using GORM.
// A payment and its allocation records form one aggregate; every save
// writes both.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by its ID, allocations included
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	var model models.PaymentModel
	if err := dbFrom(ctx, r.db).
		Preload("Allocations").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("PAYMENT_NOT_FOUND", "Payment not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStay finds payments for a stay matching the filter
func (r *GormPaymentRepository) FindByStay(ctx context.Context, stayID uuid.UUID, filter payment.PaymentFilter) ([]payment.Payment, error) {
	var paymentModels []models.PaymentModel
	query := r.applyFilter(
		dbFrom(ctx, r.db).Model(&models.PaymentModel{}).Where("stay_id = ?", stayID),
		filter,
	)

	if err := query.Preload("Allocations").Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return toDomainPayments(paymentModels), nil
}

// FindPending finds payments awaiting manual confirmation
func (r *GormPaymentRepository) FindPending(ctx context.Context, filter payment.PaymentFilter) ([]payment.Payment, error) {
	var paymentModels []models.PaymentModel
	query := r.applyFilter(
		dbFrom(ctx, r.db).Model(&models.PaymentModel{}).
			Where("status = ?", payment.StatusPendingManual),
		filter,
	)

	if err := query.Preload("Allocations").Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return toDomainPayments(paymentModels), nil
}

// FindWithCredit finds confirmed payments for a stay with an
// unallocated balance, oldest paid-at first. The billing cycle drains
// these in order, so earlier money covers earlier debt.
func (r *GormPaymentRepository) FindWithCredit(ctx context.Context, stayID uuid.UUID) ([]payment.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := dbFrom(ctx, r.db).
		Where("stay_id = ? AND status = ? AND unallocated_amount > 0", stayID, payment.StatusConfirmed).
		Order("paid_at ASC, created_at ASC").
		Preload("Allocations").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return toDomainPayments(paymentModels), nil
}

// FindAllocatedToCharge finds confirmed payments holding active
// allocations against the given charge
func (r *GormPaymentRepository) FindAllocatedToCharge(ctx context.Context, chargeID uuid.UUID) ([]payment.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := dbFrom(ctx, r.db).
		Where("status = ?", payment.StatusConfirmed).
		Where("id IN (?)", dbFrom(ctx, r.db).
			Model(&models.PaymentAllocationModel{}).
			Select("payment_id").
			Where("charge_id = ? AND status = ?", chargeID, payment.AllocationStatusActive),
		).
		Order("paid_at ASC").
		Preload("Allocations").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return toDomainPayments(paymentModels), nil
}

// Save creates or updates a payment together with its allocation records
func (r *GormPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	model := models.PaymentModelFromDomain(p)
	db := dbFrom(ctx, r.db)

	allocations := model.Allocations
	model.Allocations = nil

	if err := db.Save(model).Error; err != nil {
		return err
	}
	return r.saveAllocations(db, allocations)
}

// SaveWithLock saves a payment with optimistic locking (version check).
// The parent row carries the version; allocation records ride along in
// the same statement batch.
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, p *payment.Payment) error {
	model := models.PaymentModelFromDomain(p)
	db := dbFrom(ctx, r.db)

	allocations := model.Allocations
	model.Allocations = nil

	result := db.
		Model(model).
		Where("id = ? AND version = ?", p.ID, p.Version-1).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return r.saveAllocations(db, allocations)
}

// saveAllocations upserts allocation rows. New rows insert; existing
// rows only ever change their reversal fields.
func (r *GormPaymentRepository) saveAllocations(db *gorm.DB, allocations []models.PaymentAllocationModel) error {
	if len(allocations) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "reversed_at", "reversal_reason"}),
	}).Create(&allocations).Error
}

// Count counts payments matching the filter
func (r *GormPaymentRepository) Count(ctx context.Context, filter payment.PaymentFilter) (int64, error) {
	var count int64
	query := r.applyConditions(dbFrom(ctx, r.db).Model(&models.PaymentModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies conditions, ordering and pagination
func (r *GormPaymentRepository) applyFilter(query *gorm.DB, filter payment.PaymentFilter) *gorm.DB {
	query = r.applyConditions(query, filter)

	orderBy := ValidateSortField(filter.OrderBy, PaymentSortFields, "paid_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	return query
}

// applyConditions applies filter conditions without ordering or pagination
func (r *GormPaymentRepository) applyConditions(query *gorm.DB, filter payment.PaymentFilter) *gorm.DB {
	if filter.StayID != nil {
		query = query.Where("stay_id = ?", *filter.StayID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Provenance != nil {
		query = query.Where("provenance = ?", *filter.Provenance)
	}
	if filter.FromDate != nil {
		query = query.Where("paid_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("paid_at <= ?", *filter.ToDate)
	}
	return query
}

func toDomainPayments(paymentModels []models.PaymentModel) []payment.Payment {
	payments := make([]payment.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ payment.PaymentRepository = (*GormPaymentRepository)(nil)
