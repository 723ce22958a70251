package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/tenancy"
	"github.com/rentledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStayRepository implements StayRepository using GORM
type GormStayRepository struct {
	db *gorm.DB
}

// NewGormStayRepository creates a new GormStayRepository
func NewGormStayRepository(db *gorm.DB) *GormStayRepository {
	return &GormStayRepository{db: db}
}

// FindByID finds a stay by its ID
func (r *GormStayRepository) FindByID(ctx context.Context, id uuid.UUID) (*tenancy.Stay, error) {
	var model models.StayModel
	if err := dbFrom(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("STAY_NOT_FOUND", "Stay not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByUnit finds the currently active stay for a unit, if any
func (r *GormStayRepository) FindActiveByUnit(ctx context.Context, unitID uuid.UUID) (*tenancy.Stay, error) {
	var model models.StayModel
	if err := dbFrom(ctx, r.db).
		Where("unit_id = ? AND status = ?", unitID, tenancy.StayStatusActive).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("NO_ACTIVE_STAY", "Unit has no active stay")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds stays matching the filter
func (r *GormStayRepository) FindAll(ctx context.Context, filter tenancy.StayFilter) ([]tenancy.Stay, error) {
	var stayModels []models.StayModel
	query := r.applyFilter(dbFrom(ctx, r.db).Model(&models.StayModel{}), filter)

	if err := query.Find(&stayModels).Error; err != nil {
		return nil, err
	}

	stays := make([]tenancy.Stay, len(stayModels))
	for i, model := range stayModels {
		stays[i] = *model.ToDomain()
	}
	return stays, nil
}

// FindActive finds all active stays
func (r *GormStayRepository) FindActive(ctx context.Context) ([]tenancy.Stay, error) {
	var stayModels []models.StayModel
	if err := dbFrom(ctx, r.db).
		Where("status = ?", tenancy.StayStatusActive).
		Order("date_from ASC").
		Find(&stayModels).Error; err != nil {
		return nil, err
	}

	stays := make([]tenancy.Stay, len(stayModels))
	for i, model := range stayModels {
		stays[i] = *model.ToDomain()
	}
	return stays, nil
}

// Save creates or updates a stay
func (r *GormStayRepository) Save(ctx context.Context, stay *tenancy.Stay) error {
	model := models.StayModelFromDomain(stay)
	return dbFrom(ctx, r.db).Save(model).Error
}

// SaveWithLock saves a stay with optimistic locking (version check).
// Returns a conflict error if the row changed under us.
func (r *GormStayRepository) SaveWithLock(ctx context.Context, stay *tenancy.Stay) error {
	model := models.StayModelFromDomain(stay)
	result := dbFrom(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", stay.ID, stay.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Count counts stays matching the filter
func (r *GormStayRepository) Count(ctx context.Context, filter tenancy.StayFilter) (int64, error) {
	var count int64
	query := r.applyConditions(dbFrom(ctx, r.db).Model(&models.StayModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies conditions, ordering and pagination
func (r *GormStayRepository) applyFilter(query *gorm.DB, filter tenancy.StayFilter) *gorm.DB {
	query = r.applyConditions(query, filter)

	orderBy := ValidateSortField(filter.OrderBy, StaySortFields, "date_from")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	return query
}

// applyConditions applies filter conditions without ordering or pagination
func (r *GormStayRepository) applyConditions(query *gorm.DB, filter tenancy.StayFilter) *gorm.DB {
	if filter.UnitID != nil {
		query = query.Where("unit_id = ?", *filter.UnitID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("date_from >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("date_from <= ?", *filter.ToDate)
	}
	return query
}

// Ensure GormStayRepository implements StayRepository
var _ tenancy.StayRepository = (*GormStayRepository)(nil)
