package provider

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
)

// UtilityProviderRepository defines the interface for provider persistence
type UtilityProviderRepository interface {
	// FindByID finds a provider by ID
	FindByID(ctx context.Context, id uuid.UUID) (*UtilityProvider, error)

	// FindActive finds all active providers
	FindActive(ctx context.Context) ([]UtilityProvider, error)

	// FindByServiceType finds providers billing for the given service
	FindByServiceType(ctx context.Context, serviceType ServiceType) ([]UtilityProvider, error)

	// FindAll finds providers with pagination
	FindAll(ctx context.Context, filter shared.Filter) ([]UtilityProvider, error)

	// Save creates or updates a provider
	Save(ctx context.Context, p *UtilityProvider) error
}

// ManagementCompanyRepository defines the interface for management company persistence
type ManagementCompanyRepository interface {
	// FindByID finds a management company by ID
	FindByID(ctx context.Context, id uuid.UUID) (*ManagementCompany, error)

	// FindAll finds management companies with pagination
	FindAll(ctx context.Context, filter shared.Filter) ([]ManagementCompany, error)

	// Save creates or updates a management company
	Save(ctx context.Context, m *ManagementCompany) error
}
