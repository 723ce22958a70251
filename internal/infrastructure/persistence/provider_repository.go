package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/provider"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormUtilityProviderRepository implements UtilityProviderRepository using GORM
type GormUtilityProviderRepository struct {
	db *gorm.DB
}

// NewGormUtilityProviderRepository creates a new GormUtilityProviderRepository
func NewGormUtilityProviderRepository(db *gorm.DB) *GormUtilityProviderRepository {
	return &GormUtilityProviderRepository{db: db}
}

// FindByID finds a provider by ID
func (r *GormUtilityProviderRepository) FindByID(ctx context.Context, id uuid.UUID) (*provider.UtilityProvider, error) {
	var model models.UtilityProviderModel
	if err := dbFrom(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("PROVIDER_NOT_FOUND", "Utility provider not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive finds all active providers
func (r *GormUtilityProviderRepository) FindActive(ctx context.Context) ([]provider.UtilityProvider, error) {
	var providerModels []models.UtilityProviderModel
	if err := dbFrom(ctx, r.db).
		Where("active = ?", true).
		Order("name ASC").
		Find(&providerModels).Error; err != nil {
		return nil, err
	}
	return toDomainProviders(providerModels), nil
}

// FindByServiceType finds providers billing for the given service
func (r *GormUtilityProviderRepository) FindByServiceType(ctx context.Context, serviceType provider.ServiceType) ([]provider.UtilityProvider, error) {
	var providerModels []models.UtilityProviderModel
	if err := dbFrom(ctx, r.db).
		Where("service_type = ?", serviceType).
		Order("name ASC").
		Find(&providerModels).Error; err != nil {
		return nil, err
	}
	return toDomainProviders(providerModels), nil
}

// FindAll finds providers with pagination
func (r *GormUtilityProviderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]provider.UtilityProvider, error) {
	var providerModels []models.UtilityProviderModel
	query := dbFrom(ctx, r.db).Model(&models.UtilityProviderModel{})

	orderBy := ValidateSortField(filter.OrderBy, ProviderSortFields, "name")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Find(&providerModels).Error; err != nil {
		return nil, err
	}
	return toDomainProviders(providerModels), nil
}

// Save creates or updates a provider
func (r *GormUtilityProviderRepository) Save(ctx context.Context, p *provider.UtilityProvider) error {
	model := models.UtilityProviderModelFromDomain(p)
	return dbFrom(ctx, r.db).Save(model).Error
}

func toDomainProviders(providerModels []models.UtilityProviderModel) []provider.UtilityProvider {
	providers := make([]provider.UtilityProvider, len(providerModels))
	for i, model := range providerModels {
		providers[i] = *model.ToDomain()
	}
	return providers
}

// GormManagementCompanyRepository implements ManagementCompanyRepository using GORM
type GormManagementCompanyRepository struct {
	db *gorm.DB
}

// NewGormManagementCompanyRepository creates a new GormManagementCompanyRepository
func NewGormManagementCompanyRepository(db *gorm.DB) *GormManagementCompanyRepository {
	return &GormManagementCompanyRepository{db: db}
}

// FindByID finds a management company by ID
func (r *GormManagementCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*provider.ManagementCompany, error) {
	var model models.ManagementCompanyModel
	if err := dbFrom(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("MANAGEMENT_COMPANY_NOT_FOUND", "Management company not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds management companies with pagination
func (r *GormManagementCompanyRepository) FindAll(ctx context.Context, filter shared.Filter) ([]provider.ManagementCompany, error) {
	var companyModels []models.ManagementCompanyModel
	query := dbFrom(ctx, r.db).Model(&models.ManagementCompanyModel{})

	orderBy := ValidateSortField(filter.OrderBy, ProviderSortFields, "name")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Find(&companyModels).Error; err != nil {
		return nil, err
	}

	companies := make([]provider.ManagementCompany, len(companyModels))
	for i, model := range companyModels {
		companies[i] = *model.ToDomain()
	}
	return companies, nil
}

// Save creates or updates a management company
func (r *GormManagementCompanyRepository) Save(ctx context.Context, c *provider.ManagementCompany) error {
	model := models.ManagementCompanyModelFromDomain(c)
	return dbFrom(ctx, r.db).Save(model).Error
}

// Ensure interfaces are implemented
var (
	_ provider.UtilityProviderRepository   = (*GormUtilityProviderRepository)(nil)
	_ provider.ManagementCompanyRepository = (*GormManagementCompanyRepository)(nil)
)
