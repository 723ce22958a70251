package tenancy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/rentledger/backend/internal/domain/tenancy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StayService manages tenant stays
type StayService struct {
	stayRepo tenancy.StayRepository
	eventBus shared.EventPublisher
	logger   *zap.Logger
}

// NewStayService creates a new StayService
func NewStayService(stayRepo tenancy.StayRepository, eventBus shared.EventPublisher, logger *zap.Logger) *StayService {
	return &StayService{
		stayRepo: stayRepo,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CreateStayRequest represents a new tenant moving in
type CreateStayRequest struct {
	UnitID        uuid.UUID
	UnitLabel     string
	TenantName    string
	DateFrom      time.Time
	RentAmount    decimal.Decimal
	RentDueDay    int
	UtilityDueDay int
	TaxRate       decimal.Decimal
	Note          string
}

// CreateStay registers a new stay. A unit can hold at most one active
// stay at a time.
func (s *StayService) CreateStay(ctx context.Context, req CreateStayRequest) (*tenancy.Stay, error) {
	existing, err := s.stayRepo.FindActiveByUnit(ctx, req.UnitID)
	if err != nil && !shared.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewConflictError("UNIT_OCCUPIED",
			fmt.Sprintf("Unit %s already has an active stay", req.UnitID))
	}

	stay, err := tenancy.NewStay(req.UnitID, req.UnitLabel, req.TenantName,
		req.DateFrom, valueobject.NewMoneyRUB(req.RentAmount),
		req.RentDueDay, req.UtilityDueDay, req.TaxRate)
	if err != nil {
		return nil, err
	}
	if req.Note != "" {
		stay.SetNote(req.Note)
	}

	if err := s.stayRepo.Save(ctx, stay); err != nil {
		return nil, err
	}

	s.logger.Info("stay created",
		zap.String("stay_id", stay.ID.String()),
		zap.String("unit", stay.UnitLabel),
		zap.String("tenant", stay.TenantName))

	s.publishEvents(ctx, stay)
	return stay, nil
}

// UpdateRentTermsRequest represents a rent change
type UpdateRentTermsRequest struct {
	StayID     uuid.UUID
	RentAmount decimal.Decimal
	TaxRate    decimal.Decimal
}

// UpdateRentTerms changes the stay's rent amount and tax rate. Charges
// already issued keep their snapshots; recalculate them explicitly
// when the change applies retroactively.
func (s *StayService) UpdateRentTerms(ctx context.Context, req UpdateRentTermsRequest) (*tenancy.Stay, error) {
	stay, err := s.stayRepo.FindByID(ctx, req.StayID)
	if err != nil {
		return nil, err
	}
	if err := stay.UpdateRentTerms(valueobject.NewMoneyRUB(req.RentAmount), req.TaxRate); err != nil {
		return nil, err
	}
	if err := s.stayRepo.SaveWithLock(ctx, stay); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, stay)
	return stay, nil
}

// AddOccupantRequest represents adding a person to a stay
type AddOccupantRequest struct {
	StayID     uuid.UUID
	Name       string
	Phone      string
	TelegramID int64
	Role       tenancy.OccupantRole
}

// AddOccupant adds an occupant to the stay
func (s *StayService) AddOccupant(ctx context.Context, req AddOccupantRequest) (*tenancy.Stay, error) {
	stay, err := s.stayRepo.FindByID(ctx, req.StayID)
	if err != nil {
		return nil, err
	}
	if err := stay.AddOccupant(req.Name, req.Phone, req.TelegramID, req.Role); err != nil {
		return nil, err
	}
	if err := s.stayRepo.SaveWithLock(ctx, stay); err != nil {
		return nil, err
	}
	return stay, nil
}

// RemoveOccupant removes an occupant from the stay
func (s *StayService) RemoveOccupant(ctx context.Context, stayID, occupantID uuid.UUID) (*tenancy.Stay, error) {
	stay, err := s.stayRepo.FindByID(ctx, stayID)
	if err != nil {
		return nil, err
	}
	if err := stay.RemoveOccupant(occupantID); err != nil {
		return nil, err
	}
	if err := s.stayRepo.SaveWithLock(ctx, stay); err != nil {
		return nil, err
	}
	return stay, nil
}

// ArchiveStay ends a stay. Archived stays stop accepting payments and
// charges but their history stays readable.
func (s *StayService) ArchiveStay(ctx context.Context, stayID uuid.UUID) (*tenancy.Stay, error) {
	stay, err := s.stayRepo.FindByID(ctx, stayID)
	if err != nil {
		return nil, err
	}
	if err := stay.Archive(); err != nil {
		return nil, err
	}
	if err := s.stayRepo.SaveWithLock(ctx, stay); err != nil {
		return nil, err
	}

	s.logger.Info("stay archived", zap.String("stay_id", stayID.String()))

	s.publishEvents(ctx, stay)
	return stay, nil
}

// GetStay returns a stay by ID
func (s *StayService) GetStay(ctx context.Context, stayID uuid.UUID) (*tenancy.Stay, error) {
	return s.stayRepo.FindByID(ctx, stayID)
}

// ListStays returns stays matching the filter
func (s *StayService) ListStays(ctx context.Context, filter tenancy.StayFilter) ([]tenancy.Stay, error) {
	return s.stayRepo.FindAll(ctx, filter)
}

func (s *StayService) publishEvents(ctx context.Context, aggregates ...shared.AggregateRoot) {
	for _, agg := range aggregates {
		events := agg.GetDomainEvents()
		if len(events) > 0 {
			if err := s.eventBus.Publish(ctx, events...); err != nil {
				s.logger.Warn("failed to publish domain events", zap.Error(err))
			}
		}
		agg.ClearDomainEvents()
	}
}
