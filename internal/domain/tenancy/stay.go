package tenancy

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// StayStatus represents the status of a stay
type StayStatus string

const (
	StayStatusActive   StayStatus = "ACTIVE"   // Tenant currently occupies the unit
	StayStatusArchived StayStatus = "ARCHIVED" // Closed; read-only history
)

// IsValid checks if the status is a valid StayStatus
func (s StayStatus) IsValid() bool {
	return s == StayStatusActive || s == StayStatusArchived
}

// String returns the string representation of StayStatus
func (s StayStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the stay is in a terminal state
func (s StayStatus) IsTerminal() bool {
	return s == StayStatusArchived
}

// OccupantRole distinguishes the primary tenant from co-tenants
type OccupantRole string

const (
	OccupantRolePrimary  OccupantRole = "PRIMARY"
	OccupantRoleCoTenant OccupantRole = "CO_TENANT"
)

// IsValid checks if the occupant role is valid
func (r OccupantRole) IsValid() bool {
	return r == OccupantRolePrimary || r == OccupantRoleCoTenant
}

// Occupant is a person living in the unit during the stay.
// Value object within the Stay aggregate, stored as JSONB.
type Occupant struct {
	ID         uuid.UUID    `json:"id"`
	Name       string       `json:"name"`
	Phone      string       `json:"phone,omitempty"`
	TelegramID int64        `json:"telegram_id,omitempty"`
	Role       OccupantRole `json:"role"`
	AddedAt    time.Time    `json:"added_at"`
}

// Occupants is a slice of Occupant that implements GORM Scanner/Valuer for JSONB storage
type Occupants []Occupant

// Value implements driver.Valuer interface for GORM to store as JSONB
func (o Occupants) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	return json.Marshal(o)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (o *Occupants) Scan(value interface{}) error {
	if value == nil {
		*o = Occupants{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Occupants: unsupported type")
	}

	if len(bytes) == 0 {
		*o = Occupants{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Stay represents a tenant's occupancy of a unit over a period.
// It is the aggregate root all charges and payments hang off: archiving
// the stay freezes its ledger.
type Stay struct {
	shared.BaseAggregateRoot
	UnitID        uuid.UUID       `json:"unit_id"`
	UnitLabel     string          `json:"unit_label"` // Display name, e.g. street + apt
	TenantName    string          `json:"tenant_name"`
	DateFrom      time.Time       `json:"date_from"`
	DateTo        *time.Time      `json:"date_to"` // nil while open-ended
	RentAmount    decimal.Decimal `json:"rent_amount"`
	RentDueDay    int             `json:"rent_due_day"`    // Day of month rent charge is issued
	UtilityDueDay int             `json:"utility_due_day"` // Day of month utilities are expected
	TaxRate       decimal.Decimal `json:"tax_rate"`        // Current rate; each charge snapshots its own
	Status        StayStatus      `json:"status"`
	Occupants     Occupants       `json:"occupants"`
	ArchivedAt    *time.Time      `json:"archived_at"`
	Note          string          `json:"note"`
}

// NewStay creates a new active stay
func NewStay(
	unitID uuid.UUID,
	unitLabel string,
	tenantName string,
	dateFrom time.Time,
	rentAmount valueobject.Money,
	rentDueDay int,
	utilityDueDay int,
	taxRate decimal.Decimal,
) (*Stay, error) {
	if unitID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_UNIT", "Unit ID cannot be empty")
	}
	if tenantName == "" {
		return nil, shared.NewValidationError("INVALID_TENANT_NAME", "Tenant name cannot be empty")
	}
	if dateFrom.IsZero() {
		return nil, shared.NewValidationError("INVALID_DATE_FROM", "Stay start date cannot be empty")
	}
	if rentAmount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_RENT_AMOUNT", "Rent amount must be positive")
	}
	if err := validateDueDay(rentDueDay); err != nil {
		return nil, err
	}
	if err := validateDueDay(utilityDueDay); err != nil {
		return nil, err
	}
	if err := validateTaxRate(taxRate); err != nil {
		return nil, err
	}

	stay := &Stay{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UnitID:            unitID,
		UnitLabel:         unitLabel,
		TenantName:        tenantName,
		DateFrom:          dateFrom,
		RentAmount:        rentAmount.Amount(),
		RentDueDay:        rentDueDay,
		UtilityDueDay:     utilityDueDay,
		TaxRate:           taxRate,
		Status:            StayStatusActive,
		Occupants:         Occupants{},
	}

	stay.AddDomainEvent(NewStayCreatedEvent(stay))

	return stay, nil
}

// RentAmountMoney returns the monthly rent as Money
func (s *Stay) RentAmountMoney() valueobject.Money {
	return valueobject.NewMoneyRUB(s.RentAmount)
}

// MonthlyRentWithTax returns rent grossed up by the current tax rate,
// rounded to 2 decimal places. Charges snapshot this at creation time.
func (s *Stay) MonthlyRentWithTax() valueobject.Money {
	gross := s.RentAmount.Mul(decimal.NewFromInt(1).Add(s.TaxRate))
	return valueobject.NewMoneyRUB(gross).Round()
}

// IsActive returns true if the stay is active
func (s *Stay) IsActive() bool {
	return s.Status == StayStatusActive
}

// IsArchived returns true if the stay is archived
func (s *Stay) IsArchived() bool {
	return s.Status == StayStatusArchived
}

// EnsureActive returns an error if the stay no longer accepts
// financial operations
func (s *Stay) EnsureActive() error {
	if s.Status != StayStatusActive {
		return shared.ErrStayArchived
	}
	return nil
}

// UpdateRentTerms changes the monthly rent and tax rate going forward.
// Already-issued charges keep their snapshots; recalculation is a
// separate, explicit operation.
func (s *Stay) UpdateRentTerms(rentAmount valueobject.Money, taxRate decimal.Decimal) error {
	if err := s.EnsureActive(); err != nil {
		return err
	}
	if rentAmount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_RENT_AMOUNT", "Rent amount must be positive")
	}
	if err := validateTaxRate(taxRate); err != nil {
		return err
	}

	oldRent := s.RentAmount
	s.RentAmount = rentAmount.Amount()
	s.TaxRate = taxRate
	s.Touch()
	s.IncrementVersion()

	s.AddDomainEvent(NewStayRentChangedEvent(s, oldRent, s.RentAmount))

	return nil
}

// SetDateTo sets the planned end date of the stay
func (s *Stay) SetDateTo(dateTo time.Time) error {
	if err := s.EnsureActive(); err != nil {
		return err
	}
	if dateTo.Before(s.DateFrom) {
		return shared.NewValidationError("INVALID_DATE_TO", "Stay end date cannot precede the start date")
	}

	s.DateTo = &dateTo
	s.Touch()
	s.IncrementVersion()

	return nil
}

// AddOccupant registers a person living in the unit
func (s *Stay) AddOccupant(name, phone string, telegramID int64, role OccupantRole) error {
	if err := s.EnsureActive(); err != nil {
		return err
	}
	if name == "" {
		return shared.NewValidationError("INVALID_OCCUPANT_NAME", "Occupant name cannot be empty")
	}
	if !role.IsValid() {
		return shared.NewValidationError("INVALID_OCCUPANT_ROLE", "Invalid occupant role")
	}
	if role == OccupantRolePrimary {
		for _, o := range s.Occupants {
			if o.Role == OccupantRolePrimary {
				return shared.NewValidationError("DUPLICATE_PRIMARY_OCCUPANT", "Stay already has a primary occupant")
			}
		}
	}

	s.Occupants = append(s.Occupants, Occupant{
		ID:         uuid.New(),
		Name:       name,
		Phone:      phone,
		TelegramID: telegramID,
		Role:       role,
		AddedAt:    time.Now(),
	})
	s.Touch()
	s.IncrementVersion()

	return nil
}

// RemoveOccupant removes an occupant from the stay
func (s *Stay) RemoveOccupant(occupantID uuid.UUID) error {
	if err := s.EnsureActive(); err != nil {
		return err
	}

	for i, o := range s.Occupants {
		if o.ID == occupantID {
			s.Occupants = append(s.Occupants[:i], s.Occupants[i+1:]...)
			s.Touch()
			s.IncrementVersion()
			return nil
		}
	}
	return shared.NewValidationError("OCCUPANT_NOT_FOUND", "Occupant is not registered on this stay")
}

// PrimaryOccupant returns the primary occupant, if any
func (s *Stay) PrimaryOccupant() *Occupant {
	for i := range s.Occupants {
		if s.Occupants[i].Role == OccupantRolePrimary {
			return &s.Occupants[i]
		}
	}
	return nil
}

// Archive closes the stay. Archived stays keep their full ledger but
// reject new charges and payment confirmations.
func (s *Stay) Archive() error {
	if s.Status == StayStatusArchived {
		return shared.NewInvalidStateError("ALREADY_ARCHIVED",
			fmt.Sprintf("Stay %s is already archived", s.ID))
	}

	now := time.Now()
	s.Status = StayStatusArchived
	s.ArchivedAt = &now
	if s.DateTo == nil {
		s.DateTo = &now
	}
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewStayArchivedEvent(s))

	return nil
}

// SetNote sets the stay's free-form note
func (s *Stay) SetNote(note string) {
	s.Note = note
	s.Touch()
	s.IncrementVersion()
}

func validateDueDay(day int) error {
	// Capped at 28 so the day exists in February too
	if day < 1 || day > 28 {
		return shared.NewValidationError("INVALID_DUE_DAY", "Due day must be between 1 and 28")
	}
	return nil
}

func validateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return shared.NewValidationError("INVALID_TAX_RATE", "Tax rate must be between 0 and 1")
	}
	return nil
}
