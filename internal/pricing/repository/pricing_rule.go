package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	pricingerrors "parkly/internal/pricing/errors"
	"parkly/pkg/config"
	"parkly/pkg/model"
)

const (
	CollectionName = "Pricing_rules"
)

type PricingRuleRepository interface {
	Create(ctx context.Context, rule *model.PricingRule) error
	FindByID(ctx context.Context, id string) (*model.PricingRule, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.PricingRule, error)
	FindForSlot(ctx context.Context, spotType, dayOfWeek string) ([]*model.PricingRule, error)
	Update(ctx context.Context, id string, fields bson.M) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type mongoPricingRuleRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoPricingRuleRepository(cfg *config.Config) PricingRuleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPricingRuleRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoPricingRuleRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoPricingRuleRepository) Create(ctx context.Context, rule *model.PricingRule) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	rule.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, rule)
	if err != nil {
		return fmt.Errorf("failed to create pricing rule: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		rule.ID = oid.Hex()
	}
	return nil
}

func (r *mongoPricingRuleRepository) FindByID(ctx context.Context, id string) (*model.PricingRule, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", pricingerrors.ErrInvalidID, id)
	}

	var rule model.PricingRule
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&rule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, pricingerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find pricing rule: %w", err)
	}

	return &rule, nil
}

func (r *mongoPricingRuleRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.PricingRule, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{
			{Key: "spot_type", Value: 1},
			{Key: "day_of_week", Value: 1},
			{Key: "start_hour", Value: 1},
		}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pricing rules: %w", err)
	}
	defer cursor.Close(ctx)

	var rules []*model.PricingRule
	if err = cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode pricing rules: %w", err)
	}

	return rules, nil
}

// FindForSlot returns the rules for a (spot type, weekday) pair sorted by
// start_hour ascending, then by id. The quote engine takes the first match,
// so this ordering is what makes overlapping rules resolve deterministically.
func (r *mongoPricingRuleRepository) FindForSlot(ctx context.Context, spotType, dayOfWeek string) ([]*model.PricingRule, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"spot_type":   spotType,
		"day_of_week": dayOfWeek,
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "start_hour", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pricing rules for slot: %w", err)
	}
	defer cursor.Close(ctx)

	var rules []*model.PricingRule
	if err = cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode pricing rules: %w", err)
	}

	return rules, nil
}

func (r *mongoPricingRuleRepository) Update(ctx context.Context, id string, fields bson.M) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", pricingerrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update pricing rule: %w", err)
	}
	if result.MatchedCount == 0 {
		return pricingerrors.ErrNotFound
	}

	return nil
}

func (r *mongoPricingRuleRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", pricingerrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete pricing rule: %w", err)
	}
	if result.DeletedCount == 0 {
		return pricingerrors.ErrNotFound
	}

	return nil
}

func (r *mongoPricingRuleRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count pricing rules: %w", err)
	}

	return count, nil
}
