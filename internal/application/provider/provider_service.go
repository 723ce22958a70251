package provider

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/provider"
	"github.com/rentledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ProviderService manages utility providers and management companies
type ProviderService struct {
	providerRepo provider.UtilityProviderRepository
	companyRepo  provider.ManagementCompanyRepository
	logger       *zap.Logger
}

// NewProviderService creates a new ProviderService
func NewProviderService(
	providerRepo provider.UtilityProviderRepository,
	companyRepo provider.ManagementCompanyRepository,
	logger *zap.Logger,
) *ProviderService {
	return &ProviderService{
		providerRepo: providerRepo,
		companyRepo:  companyRepo,
		logger:       logger,
	}
}

// CreateProviderRequest represents a provider registration
type CreateProviderRequest struct {
	Name          string
	ServiceType   provider.ServiceType
	Keywords      []string
	INN           string
	AccountNumber string
	BankName      string
	Phone         string
}

// CreateProvider registers a new utility provider
func (s *ProviderService) CreateProvider(ctx context.Context, req CreateProviderRequest) (*provider.UtilityProvider, error) {
	p, err := provider.NewUtilityProvider(req.Name, req.ServiceType)
	if err != nil {
		return nil, err
	}
	if err := p.SetPaymentDetails(req.INN, req.AccountNumber, req.BankName); err != nil {
		return nil, err
	}
	p.Phone = req.Phone
	if len(req.Keywords) > 0 {
		p.SetKeywords(req.Keywords)
	}

	if err := s.providerRepo.Save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("utility provider created",
		zap.String("provider_id", p.ID.String()),
		zap.String("service_type", p.ServiceType.String()))

	return p, nil
}

// UpdateProviderRequest represents a provider update
type UpdateProviderRequest struct {
	ProviderID    uuid.UUID
	Keywords      []string
	INN           string
	AccountNumber string
	BankName      string
	Phone         string
}

// UpdateProvider replaces the provider's payment details and keywords
func (s *ProviderService) UpdateProvider(ctx context.Context, req UpdateProviderRequest) (*provider.UtilityProvider, error) {
	p, err := s.providerRepo.FindByID(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	if err := p.SetPaymentDetails(req.INN, req.AccountNumber, req.BankName); err != nil {
		return nil, err
	}
	p.Phone = req.Phone
	p.SetKeywords(req.Keywords)

	if err := s.providerRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeactivateProvider marks a provider inactive. Charges that reference
// it keep their history.
func (s *ProviderService) DeactivateProvider(ctx context.Context, providerID uuid.UUID) (*provider.UtilityProvider, error) {
	p, err := s.providerRepo.FindByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if err := p.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.providerRepo.Save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("utility provider deactivated", zap.String("provider_id", p.ID.String()))
	return p, nil
}

// GetProvider returns a provider by ID
func (s *ProviderService) GetProvider(ctx context.Context, providerID uuid.UUID) (*provider.UtilityProvider, error) {
	return s.providerRepo.FindByID(ctx, providerID)
}

// ListProviders returns providers with pagination
func (s *ProviderService) ListProviders(ctx context.Context, filter shared.Filter) ([]provider.UtilityProvider, error) {
	return s.providerRepo.FindAll(ctx, filter)
}

// ListActiveProviders returns all active providers
func (s *ProviderService) ListActiveProviders(ctx context.Context) ([]provider.UtilityProvider, error) {
	return s.providerRepo.FindActive(ctx)
}

// MatchProvider guesses the provider referenced by a piece of receipt
// text. Returns nil when no active provider's keywords match.
func (s *ProviderService) MatchProvider(ctx context.Context, text string) (*provider.UtilityProvider, error) {
	if text == "" {
		return nil, nil
	}
	providers, err := s.providerRepo.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	for i := range providers {
		if providers[i].MatchesText(text) {
			return &providers[i], nil
		}
	}
	return nil, nil
}

// CreateManagementCompanyRequest represents a management company registration
type CreateManagementCompanyRequest struct {
	Name  string
	INN   string
	Phone string
	Email string
}

// CreateManagementCompany registers a new management company
func (s *ProviderService) CreateManagementCompany(ctx context.Context, req CreateManagementCompanyRequest) (*provider.ManagementCompany, error) {
	m, err := provider.NewManagementCompany(req.Name)
	if err != nil {
		return nil, err
	}
	m.INN = req.INN
	m.Phone = req.Phone
	m.Email = req.Email

	if err := s.companyRepo.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// LinkProvider associates a provider with a management company. The
// provider must exist.
func (s *ProviderService) LinkProvider(ctx context.Context, companyID, providerID uuid.UUID) (*provider.ManagementCompany, error) {
	if _, err := s.providerRepo.FindByID(ctx, providerID); err != nil {
		return nil, err
	}
	m, err := s.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if err := m.LinkProvider(providerID); err != nil {
		return nil, err
	}
	if err := s.companyRepo.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// UnlinkProvider removes a provider association from a management company
func (s *ProviderService) UnlinkProvider(ctx context.Context, companyID, providerID uuid.UUID) (*provider.ManagementCompany, error) {
	m, err := s.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if err := m.UnlinkProvider(providerID); err != nil {
		return nil, err
	}
	if err := s.companyRepo.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetManagementCompany returns a management company by ID
func (s *ProviderService) GetManagementCompany(ctx context.Context, companyID uuid.UUID) (*provider.ManagementCompany, error) {
	return s.companyRepo.FindByID(ctx, companyID)
}

// ListManagementCompanies returns management companies with pagination
func (s *ProviderService) ListManagementCompanies(ctx context.Context, filter shared.Filter) ([]provider.ManagementCompany, error) {
	return s.companyRepo.FindAll(ctx, filter)
}
