package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	pricingerrors "parkly/internal/pricing/errors"
	"parkly/internal/pricing/repository"
	"parkly/internal/pricing/validator"
	spotservice "parkly/internal/spots/service"
	"parkly/pkg/auth"
	"parkly/pkg/config"
	apperrors "parkly/pkg/errors"
	"parkly/pkg/model"
)

type PricingService interface {
	CreateRule(ctx context.Context, rule *model.PricingRule) error
	GetRuleByID(ctx context.Context, id string) (*model.PricingRule, error)
	GetAllRules(ctx context.Context, limit int, offset int64) ([]*model.PricingRule, int64, error)
	UpdateRule(ctx context.Context, id string, updates *model.PricingRuleUpdate) error
	DeleteRule(ctx context.Context, id string) error
	Quote(ctx context.Context, spotID string, start, end time.Time) (*model.Quote, error)
}

type pricingService struct {
	repo      repository.PricingRuleRepository
	spots     spotservice.SpotService
	validator *validator.PricingRuleValidator
	cfg       *config.Config
}

func NewPricingService(
	repo repository.PricingRuleRepository,
	spots spotservice.SpotService,
	validator *validator.PricingRuleValidator,
	cfg *config.Config,
) PricingService {
	return &pricingService{
		repo:      repo,
		spots:     spots,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *pricingService) CreateRule(ctx context.Context, rule *model.PricingRule) error {
	if _, err := auth.RequireRole(ctx, auth.RoleAdmin); err != nil {
		return err
	}

	if err := s.validator.Validate(rule); err != nil {
		s.cfg.Log.Warn("Pricing rule validation failed", "error", err)
		return apperrors.Validation("Pricing rule validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		s.cfg.Log.Error("Failed to create pricing rule", "error", err)
		return apperrors.Internal("Failed to create pricing rule", err)
	}

	s.cfg.Log.Info("Pricing rule created successfully",
		"id", rule.ID,
		"spot_type", rule.SpotType,
		"day_of_week", rule.DayOfWeek,
		"start_hour", rule.StartHour,
		"end_hour", rule.EndHour,
	)
	return nil
}

func (s *pricingService) GetRuleByID(ctx context.Context, id string) (*model.PricingRule, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Pricing rule ID cannot be empty")
	}

	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, pricingerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Pricing rule", id)
		}
		if errors.Is(err, pricingerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid pricing rule ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve pricing rule", err)
	}

	return rule, nil
}

func (s *pricingService) GetAllRules(ctx context.Context, limit int, offset int64) ([]*model.PricingRule, int64, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count pricing rules", err)
	}

	rules, err := s.repo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve pricing rules", err)
	}

	return rules, count, nil
}

func (s *pricingService) UpdateRule(ctx context.Context, id string, updates *model.PricingRuleUpdate) error {
	if _, err := auth.RequireRole(ctx, auth.RoleAdmin); err != nil {
		return err
	}

	existing, err := s.GetRuleByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Pricing rule update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	fields := bson.M{}
	startHour := existing.StartHour
	endHour := existing.EndHour
	if updates.SpotType != "" {
		fields["spot_type"] = updates.SpotType
	}
	if updates.DayOfWeek != "" {
		fields["day_of_week"] = updates.DayOfWeek
	}
	if updates.StartHour != "" {
		fields["start_hour"] = updates.StartHour
		startHour = updates.StartHour
	}
	if updates.EndHour != "" {
		fields["end_hour"] = updates.EndHour
		endHour = updates.EndHour
	}
	if updates.PricePerHour != nil {
		fields["price_per_hour"] = *updates.PricePerHour
	}
	if len(fields) == 0 {
		return apperrors.InvalidInput("No fields to update")
	}
	if endHour <= startHour {
		return apperrors.Validation("EndHour must be after StartHour", nil)
	}

	if err := s.repo.Update(ctx, id, fields); err != nil {
		if errors.Is(err, pricingerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Pricing rule", id)
		}
		s.cfg.Log.Error("Failed to update pricing rule", "id", id, "error", err)
		return apperrors.Internal("Failed to update pricing rule", err)
	}

	s.cfg.Log.Info("Pricing rule updated successfully", "id", id)
	return nil
}

func (s *pricingService) DeleteRule(ctx context.Context, id string) error {
	if _, err := auth.RequireRole(ctx, auth.RoleAdmin); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, pricingerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Pricing rule", id)
		}
		if errors.Is(err, pricingerrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid pricing rule ID format")
		}
		return apperrors.Internal("Failed to delete pricing rule", err)
	}

	s.cfg.Log.Info("Pricing rule deleted successfully", "id", id)
	return nil
}

// Quote prices the interval [start, end) on a spot. A resolvable per-spot
// override short-circuits the hourly walk: the override rate applies to the
// exact duration. Otherwise the engine walks hour buckets from start and
// bills each whole bucket at the rule matching the bucket's weekday and
// hour, falling back to the configured flat rate when no rule matches. The
// last bucket may overshoot end and is still billed in full.
func (s *pricingService) Quote(ctx context.Context, spotID string, start, end time.Time) (*model.Quote, error) {
	if spotID == "" {
		return nil, apperrors.InvalidInput("Spot ID cannot be empty")
	}
	if !end.After(start) {
		return nil, apperrors.Validation("End time must be after start time", nil)
	}

	spot, err := s.spots.GetByID(ctx, spotID)
	if err != nil {
		return nil, err
	}

	quote := &model.Quote{
		SpotID:    spotID,
		StartTime: start,
		EndTime:   end,
	}

	if spot.PricingOverrideID != "" {
		rate, ok, err := s.resolveOverride(ctx, spot.PricingOverrideID)
		if err != nil {
			return nil, err
		}
		if ok {
			quote.Total = rate * end.Sub(start).Hours()
			quote.Override = true
			return quote, nil
		}
	}

	// Rules for one quote span at most a handful of (type, weekday) pairs;
	// cache lookups per weekday so the walk does one query per day touched.
	rulesByDay := make(map[string][]*model.PricingRule)
	total := 0.0
	for bucket := start; bucket.Before(end); bucket = bucket.Add(time.Hour) {
		day := bucket.Weekday().String()
		rules, ok := rulesByDay[day]
		if !ok {
			rules, err = s.repo.FindForSlot(ctx, spot.Type, day)
			if err != nil {
				return nil, apperrors.Internal("Failed to load pricing rules", err)
			}
			rulesByDay[day] = rules
		}
		total += s.rateFor(rules, bucket)
	}

	quote.Total = total
	return quote, nil
}

// resolveOverride loads the flat-rate rule a spot points at. A dangling or
// malformed reference logs a warning and reports not-ok so pricing degrades
// to the normal rule walk instead of failing the quote.
func (s *pricingService) resolveOverride(ctx context.Context, overrideID string) (float64, bool, error) {
	rule, err := s.repo.FindByID(ctx, overrideID)
	if err != nil {
		if errors.Is(err, pricingerrors.ErrNotFound) || errors.Is(err, pricingerrors.ErrInvalidID) {
			s.cfg.Log.Warn("Spot pricing override does not resolve", "override_id", overrideID, "error", err)
			return 0, false, nil
		}
		return 0, false, apperrors.Internal("Failed to resolve pricing override", err)
	}
	return rule.PricePerHour, true, nil
}

// rateFor returns the hourly rate for a bucket. Rules arrive sorted by
// start_hour then id; the first whose half-open [StartHour, EndHour) range
// contains the bucket's hour wins.
func (s *pricingService) rateFor(rules []*model.PricingRule, bucket time.Time) float64 {
	hour := bucket.Format("15:04")
	for _, rule := range rules {
		if rule.StartHour <= hour && hour < rule.EndHour {
			return rule.PricePerHour
		}
	}
	return s.cfg.FallbackHourlyRate
}

// RoundAmount truncates pricing totals to two decimals for presentation and
// payment amounts.
func RoundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}
