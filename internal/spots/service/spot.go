package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	spoterrors "parkly/internal/spots/errors"
	"parkly/internal/spots/repository"
	"parkly/internal/spots/validator"
	"parkly/pkg/auth"
	"parkly/pkg/config"
	apperrors "parkly/pkg/errors"
	"parkly/pkg/model"
	"parkly/pkg/sanitizer"
)

type SpotService interface {
	Create(ctx context.Context, spot *model.Spot) error
	Claim(ctx context.Context, spotNumber, spotType, ownerID string) (*model.Spot, error)
	GetByID(ctx context.Context, id string) (*model.Spot, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Spot, int64, error)
	ListByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Spot, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Spot, error)
	Update(ctx context.Context, id string, updates *model.SpotUpdate) error
	Delete(ctx context.Context, id string) error

	// Named transitions are the only way a spot's status moves; there is no
	// raw setter. Each enforces the free/reserved/occupied graph.
	MarkReserved(ctx context.Context, id string) error
	MarkFree(ctx context.Context, id string) error
	MarkOccupied(ctx context.Context, id string) error
}

type spotService struct {
	repo      repository.SpotRepository
	validator *validator.SpotValidator
	cfg       *config.Config
}

func NewSpotService(
	repo repository.SpotRepository,
	validator *validator.SpotValidator,
	cfg *config.Config,
) SpotService {
	return &spotService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *spotService) Create(ctx context.Context, spot *model.Spot) error {
	if _, err := auth.RequireRole(ctx, auth.RoleAdmin); err != nil {
		return err
	}
	return s.create(ctx, spot)
}

// Claim creates a spot on behalf of an owner registering an unclaimed spot
// number. No admin role required; the users service calls this during
// registration.
func (s *spotService) Claim(ctx context.Context, spotNumber, spotType, ownerID string) (*model.Spot, error) {
	if spotType == "" {
		spotType = model.SpotTypeStandard
	}
	spot := &model.Spot{
		SpotNumber: spotNumber,
		Type:       spotType,
		Status:     model.SpotStatusFree,
		OwnerID:    ownerID,
	}
	if err := s.create(ctx, spot); err != nil {
		return nil, err
	}
	return spot, nil
}

func (s *spotService) create(ctx context.Context, spot *model.Spot) error {
	spot.SpotNumber = sanitizer.SanitizeSpotNumber(spot.SpotNumber)
	if spot.Status == "" {
		spot.Status = model.SpotStatusFree
	}

	if err := s.validator.Validate(spot); err != nil {
		s.cfg.Log.Warn("Spot validation failed", "spot_number", spot.SpotNumber, "error", err)
		return apperrors.Validation("Spot validation failed", map[string]any{"error": err.Error()})
	}

	// Pre-check for a friendlier error; the unique index on spot_number is
	// the source of truth under concurrency.
	if _, err := s.repo.FindBySpotNumber(ctx, spot.SpotNumber); err == nil {
		return apperrors.Conflict(fmt.Sprintf("Spot number %q already exists", spot.SpotNumber))
	} else if !errors.Is(err, spoterrors.ErrNotFound) {
		return apperrors.Internal("Failed to check spot number uniqueness", err)
	}

	if err := s.repo.Create(ctx, spot); err != nil {
		if errors.Is(err, spoterrors.ErrDuplicateNumber) {
			return apperrors.Conflict(fmt.Sprintf("Spot number %q already exists", spot.SpotNumber))
		}
		s.cfg.Log.Error("Failed to create spot", "spot_number", spot.SpotNumber, "error", err)
		return apperrors.Internal("Failed to create spot", err)
	}

	s.cfg.Log.Info("Spot created successfully",
		"id", spot.ID,
		"spot_number", spot.SpotNumber,
		"type", spot.Type,
		"owner_id", spot.OwnerID,
	)
	return nil
}

func (s *spotService) GetByID(ctx context.Context, id string) (*model.Spot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Spot ID cannot be empty")
	}

	spot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, spoterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Spot", id)
		}
		if errors.Is(err, spoterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid spot ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve spot", err)
	}

	return spot, nil
}

func (s *spotService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Spot, int64, error) {
	var count int64
	var spots []*model.Spot
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count spots", "error", errCount)
			errCount = apperrors.Internal("Failed to count spots", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		spots, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list spots", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve spots", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return spots, count, nil
}

func (s *spotService) ListByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Spot, error) {
	switch status {
	case model.SpotStatusFree, model.SpotStatusReserved, model.SpotStatusOccupied:
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("Invalid spot status: %s", status))
	}

	spots, err := s.repo.FindByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("Failed to list spots by status", err)
	}
	return spots, nil
}

func (s *spotService) ListByOwner(ctx context.Context, ownerID string) ([]*model.Spot, error) {
	if ownerID == "" {
		return nil, apperrors.InvalidInput("Owner ID cannot be empty")
	}

	id, err := auth.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() && id.UserID != ownerID {
		return nil, apperrors.Forbidden("You can only list your own spots")
	}

	spots, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Internal("Failed to list spots by owner", err)
	}
	return spots, nil
}

func (s *spotService) Update(ctx context.Context, id string, updates *model.SpotUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Spot ID cannot be empty")
	}

	spot, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		return err
	}
	if !identity.IsAdmin() && identity.UserID != spot.OwnerID {
		return apperrors.Forbidden("You can only update your own spots")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Spot update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	fields := bson.M{}
	if updates.SpotNumber != "" {
		fields["spot_number"] = sanitizer.SanitizeSpotNumber(updates.SpotNumber)
	}
	if updates.Type != "" {
		fields["type"] = updates.Type
	}
	if updates.OwnerID != nil {
		fields["owner_id"] = *updates.OwnerID
	}
	if updates.PricingOverrideID != nil {
		fields["pricing_override_id"] = *updates.PricingOverrideID
	}
	if len(fields) == 0 {
		return apperrors.InvalidInput("No fields to update")
	}

	if err := s.repo.Update(ctx, id, fields); err != nil {
		if errors.Is(err, spoterrors.ErrDuplicateNumber) {
			return apperrors.Conflict("Spot number already exists")
		}
		if errors.Is(err, spoterrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Spot", id)
		}
		s.cfg.Log.Error("Failed to update spot", "id", id, "error", err)
		return apperrors.Internal("Failed to update spot", err)
	}

	s.cfg.Log.Info("Spot updated successfully", "id", id)
	return nil
}

func (s *spotService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Spot ID cannot be empty")
	}
	if _, err := auth.RequireRole(ctx, auth.RoleAdmin); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, spoterrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Spot", id)
		}
		if errors.Is(err, spoterrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid spot ID format")
		}
		return apperrors.Internal("Failed to delete spot", err)
	}

	s.cfg.Log.Info("Spot deleted successfully", "id", id)
	return nil
}

func (s *spotService) MarkReserved(ctx context.Context, id string) error {
	return s.transition(ctx, id, model.SpotStatusReserved)
}

func (s *spotService) MarkFree(ctx context.Context, id string) error {
	return s.transition(ctx, id, model.SpotStatusFree)
}

func (s *spotService) MarkOccupied(ctx context.Context, id string) error {
	return s.transition(ctx, id, model.SpotStatusOccupied)
}

func (s *spotService) transition(ctx context.Context, id, to string) error {
	spot, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !model.SpotTransitionAllowed(spot.Status, to) {
		return apperrors.State(fmt.Sprintf("Spot cannot move from %s to %s", spot.Status, to))
	}

	if err := s.repo.UpdateStatus(ctx, id, spot.Status, to); err != nil {
		if errors.Is(err, spoterrors.ErrStatusChanged) {
			return apperrors.State(fmt.Sprintf("Spot status changed concurrently, cannot move to %s", to))
		}
		s.cfg.Log.Error("Failed to transition spot status", "id", id, "to", to, "error", err)
		return apperrors.Internal("Failed to update spot status", err)
	}

	s.cfg.Log.Info("Spot status changed", "id", id, "from", spot.Status, "to", to)
	return nil
}
