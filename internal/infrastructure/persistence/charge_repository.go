package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/rentledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormChargeRepository implements ChargeRepository using GORM
type GormChargeRepository struct {
	db *gorm.DB
}

// NewGormChargeRepository creates a new GormChargeRepository
func NewGormChargeRepository(db *gorm.DB) *GormChargeRepository {
	return &GormChargeRepository{db: db}
}

// FindByID finds a charge by its ID
func (r *GormChargeRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Charge, error) {
	var model models.ChargeModel
	if err := dbFrom(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("CHARGE_NOT_FOUND", "Charge not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStay finds charges for a stay matching the filter
func (r *GormChargeRepository) FindByStay(ctx context.Context, stayID uuid.UUID, filter billing.ChargeFilter) ([]billing.Charge, error) {
	var chargeModels []models.ChargeModel
	query := r.applyFilter(
		dbFrom(ctx, r.db).Model(&models.ChargeModel{}).Where("stay_id = ?", stayID),
		filter,
	)

	if err := query.Find(&chargeModels).Error; err != nil {
		return nil, err
	}
	return toDomainCharges(chargeModels), nil
}

// FindByStayAndPeriod finds charges for a stay in a given period
func (r *GormChargeRepository) FindByStayAndPeriod(ctx context.Context, stayID uuid.UUID, period valueobject.Period) ([]billing.Charge, error) {
	var chargeModels []models.ChargeModel
	if err := dbFrom(ctx, r.db).
		Where("stay_id = ? AND period = ?", stayID, period).
		Order("kind ASC, created_at ASC").
		Find(&chargeModels).Error; err != nil {
		return nil, err
	}
	return toDomainCharges(chargeModels), nil
}

// FindOutstandingByStay finds charges with an outstanding balance for a
// stay, oldest period first. Within the same period rent sorts before
// utilities; creation order breaks remaining ties.
func (r *GormChargeRepository) FindOutstandingByStay(ctx context.Context, stayID uuid.UUID) ([]billing.Charge, error) {
	var chargeModels []models.ChargeModel
	if err := r.outstandingQuery(dbFrom(ctx, r.db), stayID).Find(&chargeModels).Error; err != nil {
		return nil, err
	}
	return toDomainCharges(chargeModels), nil
}

// FindOutstandingByStayForUpdate locks and returns outstanding charges
// for a stay. SELECT ... FOR UPDATE serializes concurrent allocation
// runs against the same stay; callers must already be inside a
// transaction.
func (r *GormChargeRepository) FindOutstandingByStayForUpdate(ctx context.Context, stayID uuid.UUID) ([]billing.Charge, error) {
	var chargeModels []models.ChargeModel
	if err := r.outstandingQuery(dbFrom(ctx, r.db), stayID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Find(&chargeModels).Error; err != nil {
		return nil, err
	}
	return toDomainCharges(chargeModels), nil
}

func (r *GormChargeRepository) outstandingQuery(db *gorm.DB, stayID uuid.UUID) *gorm.DB {
	return db.
		Where("stay_id = ? AND amount > allocated_amount AND status <> ?", stayID, billing.ChargeStatusSuperseded).
		Order("period ASC, kind ASC, created_at ASC")
}

// ExistsForPeriod reports whether a live charge of the given kind
// exists for the stay and period. Utility charges are scoped per
// provider; superseded charges do not count.
func (r *GormChargeRepository) ExistsForPeriod(ctx context.Context, stayID uuid.UUID, kind billing.ChargeKind, period valueobject.Period, providerID *uuid.UUID) (bool, error) {
	query := dbFrom(ctx, r.db).
		Model(&models.ChargeModel{}).
		Where("stay_id = ? AND kind = ? AND period = ? AND status <> ?", stayID, kind, period, billing.ChargeStatusSuperseded)
	if providerID != nil {
		query = query.Where("provider_id = ?", *providerID)
	} else {
		query = query.Where("provider_id IS NULL")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a charge
func (r *GormChargeRepository) Save(ctx context.Context, charge *billing.Charge) error {
	model := models.ChargeModelFromDomain(charge)
	return dbFrom(ctx, r.db).Save(model).Error
}

// SaveWithLock saves a charge with optimistic locking (version check)
func (r *GormChargeRepository) SaveWithLock(ctx context.Context, charge *billing.Charge) error {
	model := models.ChargeModelFromDomain(charge)
	result := dbFrom(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", charge.ID, charge.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Delete removes a charge. The RESTRICT foreign key on
// payment_allocations surfaces as an error if any allocation still
// references the charge.
func (r *GormChargeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := dbFrom(ctx, r.db).Delete(&models.ChargeModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("CHARGE_NOT_FOUND", "Charge not found")
	}
	return nil
}

// Count counts charges matching the filter
func (r *GormChargeRepository) Count(ctx context.Context, filter billing.ChargeFilter) (int64, error) {
	var count int64
	query := r.applyConditions(dbFrom(ctx, r.db).Model(&models.ChargeModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies conditions, ordering and pagination
func (r *GormChargeRepository) applyFilter(query *gorm.DB, filter billing.ChargeFilter) *gorm.DB {
	query = r.applyConditions(query, filter)

	orderBy := ValidateSortField(filter.OrderBy, ChargeSortFields, "period")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	return query
}

// applyConditions applies filter conditions without ordering or pagination
func (r *GormChargeRepository) applyConditions(query *gorm.DB, filter billing.ChargeFilter) *gorm.DB {
	if filter.StayID != nil {
		query = query.Where("stay_id = ?", *filter.StayID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.ProviderID != nil {
		query = query.Where("provider_id = ?", *filter.ProviderID)
	}
	if filter.FromPeriod != nil {
		query = query.Where("period >= ?", *filter.FromPeriod)
	}
	if filter.ToPeriod != nil {
		query = query.Where("period <= ?", *filter.ToPeriod)
	}
	return query
}

func toDomainCharges(chargeModels []models.ChargeModel) []billing.Charge {
	charges := make([]billing.Charge, len(chargeModels))
	for i, model := range chargeModels {
		charges[i] = *model.ToDomain()
	}
	return charges
}

// Ensure GormChargeRepository implements ChargeRepository
var _ billing.ChargeRepository = (*GormChargeRepository)(nil)
