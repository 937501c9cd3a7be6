package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"parkly/internal/notifications/events"
	reserrors "parkly/internal/reservations/errors"
	"parkly/internal/reservations/repository"
	"parkly/internal/reservations/validator"
	spotservice "parkly/internal/spots/service"
	"parkly/pkg/auth"
	"parkly/pkg/config"
	apperrors "parkly/pkg/errors"
	"parkly/pkg/model"
)

// sweepBatchSize caps how many elapsed reservations one sweep run advances.
const sweepBatchSize = 500

type ReservationService interface {
	Book(ctx context.Context, reservation *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error)
	ListBySpot(ctx context.Context, spotID string, limit int, offset int64) ([]*model.Reservation, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error)
	UpdateInterval(ctx context.Context, id string, updates *model.ReservationUpdate) error
	Confirm(ctx context.Context, id string) error
	CheckIn(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Sweep(ctx context.Context) (int, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	lockRepo  repository.SpotLockRepository
	spots     spotservice.SpotService
	validator *validator.ReservationValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.SpotLockRepository,
	spots spotservice.SpotService,
	validator *validator.ReservationValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		spots:     spots,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *reservationService) Book(ctx context.Context, reservation *model.Reservation) error {
	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		return err
	}
	if reservation.UserID == "" {
		reservation.UserID = identity.UserID
	}
	if !identity.IsAdmin() && reservation.UserID != identity.UserID {
		return apperrors.Forbidden("You can only book reservations for yourself")
	}

	reservation.Status = model.ReservationStatusPending
	if err := s.validate(reservation); err != nil {
		return err
	}
	if !reservation.EndTime.After(time.Now()) {
		return apperrors.Validation("Reservation cannot end in the past", nil)
	}

	spot, err := s.spots.GetByID(ctx, reservation.SpotID)
	if err != nil {
		return err
	}
	if spot.Status == model.SpotStatusOccupied {
		return apperrors.Conflict("Spot is currently occupied")
	}

	// Acquire advisory lock to serialize the conflict-check-then-insert
	// sequence per spot
	lockID, err := s.acquireSpotLock(ctx, reservation.SpotID)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.releaseSpotLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release spot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyNoOverlap(sessCtx, reservation.SpotID, reservation.StartTime, reservation.EndTime, ""); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create reservation", "spot_id", reservation.SpotID, "error", err)
		return err
	}

	// The spot is marked reserved once it carries its first active
	// reservation; further bookings on an already reserved spot leave the
	// status alone. A failed transition cancels the reservation so the
	// ledger and the spot never disagree.
	if spot.Status == model.SpotStatusFree {
		if err := s.spots.MarkReserved(ctx, reservation.SpotID); err != nil {
			s.cfg.Log.Error("Failed to reserve spot, cancelling reservation",
				"reservation_id", reservation.ID,
				"spot_id", reservation.SpotID,
				"error", err,
			)
			if cancelErr := s.repo.UpdateStatus(ctx, reservation.ID, model.ReservationStatusPending, model.ReservationStatusCancelled); cancelErr != nil {
				s.cfg.Log.Error("Failed to cancel reservation after spot transition failure",
					"reservation_id", reservation.ID,
					"error", cancelErr,
				)
			}
			return err
		}
	}

	s.publish(ctx, model.EventReservationCreated, reservation, 0)
	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"spot_id", reservation.SpotID,
		"user_id", reservation.UserID,
		"start_time", reservation.StartTime,
	)
	return nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	reservation, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && identity.UserID != reservation.UserID {
		return nil, apperrors.Forbidden("You can only view your own reservations")
	}

	return reservation, nil
}

func (s *reservationService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && identity.UserID != userID {
		return nil, apperrors.Forbidden("You can only list your own reservations")
	}

	reservations, err := s.repo.FindByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("Failed to list reservations by user", err)
	}
	return reservations, nil
}

func (s *reservationService) ListBySpot(ctx context.Context, spotID string, limit int, offset int64) ([]*model.Reservation, error) {
	if spotID == "" {
		return nil, apperrors.InvalidInput("Spot ID cannot be empty")
	}

	spot, err := s.spots.GetByID(ctx, spotID)
	if err != nil {
		return nil, err
	}

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && identity.UserID != spot.OwnerID {
		return nil, apperrors.Forbidden("You can only list reservations for your own spots")
	}

	reservations, err := s.repo.FindBySpot(ctx, spotID, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("Failed to list reservations by spot", err)
	}
	return reservations, nil
}

func (s *reservationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if _, err := auth.RequireRole(ctx, auth.RoleAdmin); err != nil {
		return nil, 0, err
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count reservations", err)
	}

	reservations, err := s.repo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve reservations", err)
	}

	return reservations, count, nil
}

func (s *reservationService) UpdateInterval(ctx context.Context, id string, updates *model.ReservationUpdate) error {
	reservation, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		return err
	}
	if !identity.IsAdmin() && identity.UserID != reservation.UserID {
		return apperrors.Forbidden("You can only modify your own reservations")
	}
	if reservation.Terminal() {
		return apperrors.State(fmt.Sprintf("Cannot modify a %s reservation", reservation.Status))
	}

	start := reservation.StartTime
	end := reservation.EndTime
	if updates.StartTime != nil {
		start = *updates.StartTime
	}
	if updates.EndTime != nil {
		end = *updates.EndTime
	}
	if err := s.validator.ValidateInterval(start, end); err != nil {
		s.cfg.Log.Warn("Reservation update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	lockID, err := s.acquireSpotLock(ctx, reservation.SpotID)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.releaseSpotLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release spot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	// The reservation's own interval is excluded from the conflict check, so
	// shrinking or shifting within its current window always succeeds.
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyNoOverlap(sessCtx, reservation.SpotID, start, end, reservation.ID); err != nil {
			return err
		}
		if err := s.repo.UpdateInterval(sessCtx, id, start, end); err != nil {
			return apperrors.Internal("Failed to update reservation interval", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update reservation", "id", id, "error", err)
		return err
	}

	s.cfg.Log.Info("Reservation interval updated", "id", id, "start_time", start, "end_time", end)
	return nil
}

func (s *reservationService) Confirm(ctx context.Context, id string) error {
	reservation, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		return err
	}
	if !identity.IsAdmin() && identity.UserID != reservation.UserID {
		return apperrors.Forbidden("You can only confirm your own reservations")
	}

	if reservation.Status != model.ReservationStatusPending {
		return apperrors.State(fmt.Sprintf("Only pending reservations can be confirmed, current status is %s", reservation.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, model.ReservationStatusPending, model.ReservationStatusConfirmed); err != nil {
		if errors.Is(err, reserrors.ErrStatusChanged) {
			return apperrors.State("Reservation status changed concurrently")
		}
		return apperrors.Internal("Failed to confirm reservation", err)
	}

	s.publish(ctx, model.EventReservationConfirmed, reservation, 0)
	s.cfg.Log.Info("Reservation confirmed", "id", id)
	return nil
}

// CheckIn records the driver's arrival: the spot moves from reserved to
// occupied. Only confirmed reservations inside their window can check in.
func (s *reservationService) CheckIn(ctx context.Context, id string) error {
	reservation, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		return err
	}
	if !identity.IsAdmin() && identity.UserID != reservation.UserID {
		return apperrors.Forbidden("You can only check in to your own reservations")
	}

	if reservation.Status != model.ReservationStatusConfirmed {
		return apperrors.State(fmt.Sprintf("Only confirmed reservations can check in, current status is %s", reservation.Status))
	}
	now := time.Now()
	if now.Before(reservation.StartTime) || !now.Before(reservation.EndTime) {
		return apperrors.State("Check-in is only possible during the reservation window")
	}

	if err := s.spots.MarkOccupied(ctx, reservation.SpotID); err != nil {
		return err
	}

	s.cfg.Log.Info("Reservation checked in", "id", id, "spot_id", reservation.SpotID)
	return nil
}

// Cancel releases the reservation's claim on the spot. Cancelling an already
// terminal reservation is a state error, so a double cancel can never free
// the spot twice.
func (s *reservationService) Cancel(ctx context.Context, id string) error {
	reservation, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		return err
	}
	if !identity.IsAdmin() && identity.UserID != reservation.UserID {
		return apperrors.Forbidden("You can only cancel your own reservations")
	}

	if reservation.Terminal() {
		return apperrors.State(fmt.Sprintf("Reservation is already %s", reservation.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, reservation.Status, model.ReservationStatusCancelled); err != nil {
		if errors.Is(err, reserrors.ErrStatusChanged) {
			return apperrors.State("Reservation status changed concurrently")
		}
		return apperrors.Internal("Failed to cancel reservation", err)
	}

	s.freeSpotIfIdle(ctx, reservation.SpotID)

	s.publish(ctx, model.EventReservationCancelled, reservation, 0)
	s.cfg.Log.Info("Reservation cancelled", "id", id, "spot_id", reservation.SpotID)
	return nil
}

// Sweep advances elapsed pending and confirmed reservations to finished and
// frees their spots. It runs on a cron schedule and returns the number of
// reservations it moved.
func (s *reservationService) Sweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	elapsed, err := s.repo.FindElapsed(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, apperrors.Internal("Failed to find elapsed reservations", err)
	}

	finished := 0
	for _, reservation := range elapsed {
		if err := s.repo.UpdateStatus(ctx, reservation.ID, reservation.Status, model.ReservationStatusFinished); err != nil {
			if errors.Is(err, reserrors.ErrStatusChanged) {
				continue
			}
			s.cfg.Log.Error("Failed to finish reservation", "id", reservation.ID, "error", err)
			continue
		}
		finished++

		s.freeSpotIfIdle(ctx, reservation.SpotID)
		s.publish(ctx, model.EventReservationFinished, reservation, 0)
	}

	if finished > 0 {
		s.cfg.Log.Info("Reservation sweep completed", "finished", finished, "scanned", len(elapsed))
	}
	return finished, nil
}

// --- Helpers ---

func (s *reservationService) findByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		if errors.Is(err, reserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}

	return reservation, nil
}

func (s *reservationService) validate(reservation *model.Reservation) error {
	if err := s.validator.Validate(reservation); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *reservationService) verifyNoOverlap(ctx context.Context, spotID string, start, end time.Time, excludeID string) error {
	existing, err := s.repo.FindOverlapping(ctx, spotID, start, end, excludeID)
	if err != nil {
		return apperrors.Internal("Failed to check existing reservations", err)
	}

	for _, r := range existing {
		if r.Overlaps(start, end) {
			return apperrors.Conflict(fmt.Sprintf(
				"Reservation overlaps with an existing reservation (%s - %s)",
				r.StartTime.Format(time.RFC3339),
				r.EndTime.Format(time.RFC3339),
			))
		}
	}
	return nil
}

// freeSpotIfIdle moves the spot back to free when no active reservation still
// claims time on it. Transition failures are logged, not returned; the caller
// already completed its own state change.
func (s *reservationService) freeSpotIfIdle(ctx context.Context, spotID string) {
	now := time.Now().UTC()
	remaining, err := s.repo.FindOverlapping(ctx, spotID, now, now.AddDate(10, 0, 0), "")
	if err != nil {
		s.cfg.Log.Error("Failed to check remaining reservations", "spot_id", spotID, "error", err)
		return
	}
	for _, r := range remaining {
		if !r.Terminal() {
			return
		}
	}

	spot, err := s.spots.GetByID(ctx, spotID)
	if err != nil {
		s.cfg.Log.Error("Failed to load spot for release", "spot_id", spotID, "error", err)
		return
	}
	if spot.Status == model.SpotStatusFree {
		return
	}

	if err := s.spots.MarkFree(ctx, spotID); err != nil {
		s.cfg.Log.Warn("Failed to free spot", "spot_id", spotID, "error", err)
	}
}

// acquireSpotLock creates an advisory lock to prevent concurrent booking on
// the same spot. Returns the lock ID, or a conflict error if another request
// holds the lock.
func (s *reservationService) acquireSpotLock(ctx context.Context, spotID string) (string, error) {
	lockID := fmt.Sprintf("spot_lock_%s", spotID)

	lock := &model.SpotLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.SpotLockTTL),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This spot is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire spot lock", err)
	}

	return lockID, nil
}

func (s *reservationService) releaseSpotLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}

func (s *reservationService) publish(ctx context.Context, eventType string, reservation *model.Reservation, amount float64) {
	event := &model.DomainEvent{
		Type:          eventType,
		UserID:        reservation.UserID,
		SpotID:        reservation.SpotID,
		ReservationID: reservation.ID,
		Amount:        amount,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event", "type", eventType, "reservation_id", reservation.ID, "error", err)
	}
}
