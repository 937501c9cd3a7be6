package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"parkly/internal/notifications/events"
	paymenterrors "parkly/internal/payments/errors"
	"parkly/internal/payments/repository"
	"parkly/internal/payments/validator"
	pricingservice "parkly/internal/pricing/service"
	reservationservice "parkly/internal/reservations/service"
	"parkly/pkg/auth"
	"parkly/pkg/config"
	apperrors "parkly/pkg/errors"
	"parkly/pkg/model"
)

// amountTolerance is the largest difference between a client-supplied amount
// and the recomputed charge that still passes, covering float rounding.
const amountTolerance = 0.01

type PaymentService interface {
	Initiate(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id string) (*model.Payment, error)
	ListByReservation(ctx context.Context, reservationID string) ([]*model.Payment, error)
	Confirm(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Refund(ctx context.Context, id string) error
}

type paymentService struct {
	repo         repository.PaymentRepository
	reservations reservationservice.ReservationService
	pricing      pricingservice.PricingService
	validator    *validator.PaymentValidator
	publisher    events.Publisher
	cfg          *config.Config
}

func NewPaymentService(
	repo repository.PaymentRepository,
	reservations reservationservice.ReservationService,
	pricing pricingservice.PricingService,
	validator *validator.PaymentValidator,
	publisher events.Publisher,
	cfg *config.Config,
) PaymentService {
	return &paymentService{
		repo:         repo,
		reservations: reservations,
		pricing:      pricing,
		validator:    validator,
		publisher:    publisher,
		cfg:          cfg,
	}
}

// Initiate opens a pending payment for a reservation. The charge is always
// recomputed server-side from the pricing engine; a client-supplied amount is
// accepted only as a cross-check and rejected when it disagrees beyond a
// cent.
func (s *paymentService) Initiate(ctx context.Context, payment *model.Payment) error {
	reservation, err := s.reservations.GetByID(ctx, payment.ReservationID)
	if err != nil {
		return err
	}
	if reservation.Status == model.ReservationStatusCancelled {
		return apperrors.State("Cannot pay for a cancelled reservation")
	}

	quote, err := s.pricing.Quote(ctx, reservation.SpotID, reservation.StartTime, reservation.EndTime)
	if err != nil {
		return err
	}
	expected := pricingservice.RoundAmount(quote.Total)

	if payment.Amount != 0 && math.Abs(payment.Amount-expected) > amountTolerance {
		return apperrors.Validation("Payment amount does not match the computed charge", map[string]any{
			"expected": expected,
			"supplied": payment.Amount,
		})
	}
	payment.Amount = expected
	payment.Status = model.PaymentStatusPending

	if err := s.validator.Validate(payment); err != nil {
		s.cfg.Log.Warn("Payment validation failed", "reservation_id", payment.ReservationID, "error", err)
		return apperrors.Validation("Payment validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		s.cfg.Log.Error("Failed to create payment", "reservation_id", payment.ReservationID, "error", err)
		return apperrors.Internal("Failed to create payment", err)
	}

	s.cfg.Log.Info("Payment initiated",
		"id", payment.ID,
		"reservation_id", payment.ReservationID,
		"amount", payment.Amount,
		"method", payment.Method,
	)
	return nil
}

func (s *paymentService) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	payment, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Authorization rides on the reservation lookup: only its user or an
	// admin can see it, and therefore the payment.
	if _, err := s.reservations.GetByID(ctx, payment.ReservationID); err != nil {
		return nil, err
	}

	return payment, nil
}

func (s *paymentService) ListByReservation(ctx context.Context, reservationID string) ([]*model.Payment, error) {
	if reservationID == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	if _, err := s.reservations.GetByID(ctx, reservationID); err != nil {
		return nil, err
	}

	payments, err := s.repo.FindByReservation(ctx, reservationID)
	if err != nil {
		return nil, apperrors.Internal("Failed to list payments by reservation", err)
	}
	return payments, nil
}

// Confirm marks a pending payment completed.
func (s *paymentService) Confirm(ctx context.Context, id string) error {
	return s.transition(ctx, id, model.PaymentStatusCompleted, model.EventPaymentCompleted)
}

// Cancel marks a pending payment failed.
func (s *paymentService) Cancel(ctx context.Context, id string) error {
	return s.transition(ctx, id, model.PaymentStatusFailed, model.EventPaymentFailed)
}

// Refund moves a completed payment to refunded. Failed payments never took
// money and cannot be refunded.
func (s *paymentService) Refund(ctx context.Context, id string) error {
	if _, err := auth.RequireRole(ctx, auth.RoleAdmin); err != nil {
		return err
	}
	return s.transition(ctx, id, model.PaymentStatusRefunded, model.EventPaymentRefunded)
}

func (s *paymentService) transition(ctx context.Context, id, to, eventType string) error {
	payment, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}

	reservation, err := s.reservations.GetByID(ctx, payment.ReservationID)
	if err != nil {
		return err
	}

	if !model.PaymentTransitionAllowed(payment.Status, to) {
		return apperrors.State(fmt.Sprintf("Payment cannot move from %s to %s", payment.Status, to))
	}

	if err := s.repo.UpdateStatus(ctx, id, payment.Status, to); err != nil {
		if errors.Is(err, paymenterrors.ErrStatusChanged) {
			return apperrors.State(fmt.Sprintf("Payment status changed concurrently, cannot move to %s", to))
		}
		s.cfg.Log.Error("Failed to update payment status", "id", id, "to", to, "error", err)
		return apperrors.Internal("Failed to update payment status", err)
	}

	s.publish(ctx, eventType, payment, reservation)
	s.cfg.Log.Info("Payment status changed", "id", id, "from", payment.Status, "to", to)
	return nil
}

func (s *paymentService) findByID(ctx context.Context, id string) (*model.Payment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Payment ID cannot be empty")
	}

	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, paymenterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Payment", id)
		}
		if errors.Is(err, paymenterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid payment ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve payment", err)
	}

	return payment, nil
}

func (s *paymentService) publish(ctx context.Context, eventType string, payment *model.Payment, reservation *model.Reservation) {
	event := &model.DomainEvent{
		Type:          eventType,
		UserID:        reservation.UserID,
		SpotID:        reservation.SpotID,
		ReservationID: reservation.ID,
		PaymentID:     payment.ID,
		Amount:        payment.Amount,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish payment event", "type", eventType, "payment_id", payment.ID, "error", err)
	}
}
