package service

import (
	"context"
	"errors"
	"fmt"

	notifierrors "parkly/internal/notifications/errors"
	"parkly/internal/notifications/repository"
	"parkly/pkg/auth"
	"parkly/pkg/config"
	apperrors "parkly/pkg/errors"
	"parkly/pkg/model"
)

type NotificationService interface {
	Record(ctx context.Context, event *model.DomainEvent) error
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

type notificationService struct {
	repo repository.NotificationRepository
	cfg  *config.Config
}

func NewNotificationService(repo repository.NotificationRepository, cfg *config.Config) NotificationService {
	return &notificationService{
		repo: repo,
		cfg:  cfg,
	}
}

// Record turns a consumed domain event into a notification row. Unknown
// event types are dropped, not failed, so new producers never wedge the
// consumer.
func (s *notificationService) Record(ctx context.Context, event *model.DomainEvent) error {
	if event.UserID == "" {
		return apperrors.InvalidInput("Event has no user ID")
	}

	message := messageFor(event)
	if message == "" {
		s.cfg.Log.Debug("Skipping unknown event type", "type", event.Type)
		return nil
	}

	notification := &model.Notification{
		UserID:  event.UserID,
		Message: message,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		s.cfg.Log.Error("Failed to record notification", "user_id", event.UserID, "type", event.Type, "error", err)
		return apperrors.Internal("Failed to record notification", err)
	}

	s.cfg.Log.Debug("Notification recorded", "id", notification.ID, "user_id", event.UserID, "type", event.Type)
	return nil
}

func (s *notificationService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Notification, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && identity.UserID != userID {
		return nil, apperrors.Forbidden("You can only list your own notifications")
	}

	notifications, err := s.repo.FindByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("Failed to list notifications", err)
	}
	return notifications, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Notification ID cannot be empty")
	}

	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, notifierrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Notification", id)
		}
		if errors.Is(err, notifierrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid notification ID format")
		}
		return apperrors.Internal("Failed to retrieve notification", err)
	}

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		return err
	}
	if !identity.IsAdmin() && identity.UserID != notification.UserID {
		return apperrors.Forbidden("You can only mark your own notifications read")
	}

	if err := s.repo.MarkRead(ctx, id); err != nil {
		if errors.Is(err, notifierrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Notification", id)
		}
		return apperrors.Internal("Failed to mark notification read", err)
	}

	return nil
}

func messageFor(event *model.DomainEvent) string {
	switch event.Type {
	case model.EventReservationCreated:
		return "Your reservation has been created"
	case model.EventReservationConfirmed:
		return "Your reservation has been confirmed"
	case model.EventReservationCancelled:
		return "Your reservation has been cancelled"
	case model.EventReservationFinished:
		return "Your reservation has finished"
	case model.EventPaymentCompleted:
		return fmt.Sprintf("Your payment of %.2f has been completed", event.Amount)
	case model.EventPaymentFailed:
		return "Your payment could not be processed"
	case model.EventPaymentRefunded:
		return fmt.Sprintf("Your payment of %.2f has been refunded", event.Amount)
	default:
		return ""
	}
}
