package provider

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
)

// ServiceType represents the kind of utility service a provider bills for
type ServiceType string

const (
	ServiceTypeElectricity ServiceType = "ELECTRICITY"
	ServiceTypeWater       ServiceType = "WATER"
	ServiceTypeGas         ServiceType = "GAS"
	ServiceTypeHeating     ServiceType = "HEATING"
	ServiceTypeInternet    ServiceType = "INTERNET"
	ServiceTypeMaintenance ServiceType = "MAINTENANCE" // Building upkeep billed by the management company
	ServiceTypeOther       ServiceType = "OTHER"
)

// IsValid checks if the service type is valid
func (s ServiceType) IsValid() bool {
	switch s {
	case ServiceTypeElectricity, ServiceTypeWater, ServiceTypeGas,
		ServiceTypeHeating, ServiceTypeInternet, ServiceTypeMaintenance, ServiceTypeOther:
		return true
	}
	return false
}

// String returns the string representation of ServiceType
func (s ServiceType) String() string {
	return string(s)
}

// Keywords is a list of matching hints used to recognize a provider in
// parsed receipt text. Stored as JSONB.
type Keywords []string

// Value implements driver.Valuer interface for GORM to store as JSONB
func (k Keywords) Value() (driver.Value, error) {
	if k == nil {
		return "[]", nil
	}
	return json.Marshal(k)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (k *Keywords) Scan(value interface{}) error {
	if value == nil {
		*k = Keywords{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Keywords: unsupported type")
	}

	if len(bytes) == 0 {
		*k = Keywords{}
		return nil
	}

	return json.Unmarshal(bytes, k)
}

// UtilityProvider represents a resource supplying organization the
// tenant pays for utilities. Payment details are structured columns so
// they can be validated and rendered, not an opaque blob.
type UtilityProvider struct {
	shared.BaseAggregateRoot
	Name          string      `json:"name"`
	ServiceType   ServiceType `json:"service_type"`
	Keywords      Keywords    `json:"keywords"`
	INN           string      `json:"inn"` // Tax number of the receiver
	AccountNumber string      `json:"account_number"`
	BankName      string      `json:"bank_name"`
	Phone         string      `json:"phone"`
	Active        bool        `json:"active"`
}

// NewUtilityProvider creates a new utility provider
func NewUtilityProvider(name string, serviceType ServiceType) (*UtilityProvider, error) {
	if name == "" {
		return nil, shared.NewValidationError("INVALID_NAME", "Provider name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewValidationError("INVALID_NAME", "Provider name cannot exceed 200 characters")
	}
	if !serviceType.IsValid() {
		return nil, shared.NewValidationError("INVALID_SERVICE_TYPE", "Service type is not valid")
	}

	return &UtilityProvider{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		ServiceType:       serviceType,
		Keywords:          Keywords{},
		Active:            true,
	}, nil
}

// SetPaymentDetails sets the provider's structured payment details
func (p *UtilityProvider) SetPaymentDetails(inn, accountNumber, bankName string) error {
	if inn != "" && (len(inn) < 10 || len(inn) > 12) {
		return shared.NewValidationError("INVALID_INN", "INN must be 10 to 12 digits")
	}
	if accountNumber != "" && len(accountNumber) != 20 {
		return shared.NewValidationError("INVALID_ACCOUNT", "Account number must be 20 digits")
	}

	p.INN = inn
	p.AccountNumber = accountNumber
	p.BankName = bankName
	p.Touch()
	p.IncrementVersion()

	return nil
}

// SetKeywords replaces the provider's matching keywords
func (p *UtilityProvider) SetKeywords(keywords []string) {
	cleaned := make(Keywords, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	p.Keywords = cleaned
	p.Touch()
	p.IncrementVersion()
}

// MatchesText reports whether any keyword occurs in the given text.
// Used to guess the provider from parsed receipt content.
func (p *UtilityProvider) MatchesText(text string) bool {
	if len(p.Keywords) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range p.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Deactivate marks the provider inactive. Existing charges keep their
// reference.
func (p *UtilityProvider) Deactivate() error {
	if !p.Active {
		return shared.NewInvalidStateError("ALREADY_INACTIVE", "Provider is already inactive")
	}
	p.Active = false
	p.Touch()
	p.IncrementVersion()
	return nil
}

// ProviderIDs is a list of provider references stored as JSONB
type ProviderIDs []uuid.UUID

// Value implements driver.Valuer interface for GORM to store as JSONB
func (p ProviderIDs) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (p *ProviderIDs) Scan(value interface{}) error {
	if value == nil {
		*p = ProviderIDs{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan ProviderIDs: unsupported type")
	}

	if len(bytes) == 0 {
		*p = ProviderIDs{}
		return nil
	}

	return json.Unmarshal(bytes, p)
}

// ManagementCompany represents the organization managing a building.
// It aggregates the utility providers it collects for.
type ManagementCompany struct {
	shared.BaseAggregateRoot
	Name      string      `json:"name"`
	INN       string      `json:"inn"`
	Phone     string      `json:"phone"`
	Email     string      `json:"email"`
	Providers ProviderIDs `json:"providers"`
}

// NewManagementCompany creates a new management company
func NewManagementCompany(name string) (*ManagementCompany, error) {
	if name == "" {
		return nil, shared.NewValidationError("INVALID_NAME", "Management company name cannot be empty")
	}

	return &ManagementCompany{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Providers:         ProviderIDs{},
	}, nil
}

// LinkProvider associates a provider with the management company
func (m *ManagementCompany) LinkProvider(providerID uuid.UUID) error {
	if providerID == uuid.Nil {
		return shared.NewValidationError("INVALID_PROVIDER", "Provider ID cannot be empty")
	}
	for _, id := range m.Providers {
		if id == providerID {
			return shared.NewConflictError("ALREADY_LINKED", "Provider is already linked")
		}
	}

	m.Providers = append(m.Providers, providerID)
	m.Touch()
	m.IncrementVersion()
	return nil
}

// UnlinkProvider removes a provider association
func (m *ManagementCompany) UnlinkProvider(providerID uuid.UUID) error {
	for i, id := range m.Providers {
		if id == providerID {
			m.Providers = append(m.Providers[:i], m.Providers[i+1:]...)
			m.Touch()
			m.IncrementVersion()
			return nil
		}
	}
	return shared.NewValidationError("NOT_LINKED", "Provider is not linked to this company")
}
