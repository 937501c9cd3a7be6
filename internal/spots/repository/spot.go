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

	spoterrors "parkly/internal/spots/errors"
	"parkly/pkg/config"
	mongotx "parkly/pkg/db/mongo"
	"parkly/pkg/model"
)

const (
	CollectionName = "Spots"
)

type SpotRepository interface {
	Create(ctx context.Context, spot *model.Spot) error
	FindByID(ctx context.Context, id string) (*model.Spot, error)
	FindBySpotNumber(ctx context.Context, spotNumber string) (*model.Spot, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Spot, error)
	FindByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Spot, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*model.Spot, error)
	Update(ctx context.Context, id string, fields bson.M) error
	UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoSpotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoSpotRepository(cfg *config.Config) SpotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSpotRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless already inside a
// transaction; a SessionContext cannot be wrapped without breaking
// transaction semantics.
func (r *mongoSpotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoSpotRepository) Create(ctx context.Context, spot *model.Spot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	spot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, spot)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return spoterrors.ErrDuplicateNumber
		}
		return fmt.Errorf("failed to create spot: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		spot.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSpotRepository) FindByID(ctx context.Context, id string) (*model.Spot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", spoterrors.ErrInvalidID, id)
	}

	var spot model.Spot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&spot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, spoterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find spot: %w", err)
	}

	return &spot, nil
}

func (r *mongoSpotRepository) FindBySpotNumber(ctx context.Context, spotNumber string) (*model.Spot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var spot model.Spot
	err := r.collection.FindOne(ctx, bson.M{"spot_number": spotNumber}).Decode(&spot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, spoterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find spot by number: %w", err)
	}

	return &spot, nil
}

func (r *mongoSpotRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Spot, error) {
	return r.find(ctx, bson.M{}, limit, offset)
}

func (r *mongoSpotRepository) FindByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Spot, error) {
	return r.find(ctx, bson.M{"status": status}, limit, offset)
}

func (r *mongoSpotRepository) FindByOwner(ctx context.Context, ownerID string) ([]*model.Spot, error) {
	return r.find(ctx, bson.M{"owner_id": ownerID}, config.DefaultPaginationLimit, 0)
}

func (r *mongoSpotRepository) find(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Spot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "spot_number", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find spots: %w", err)
	}
	defer cursor.Close(ctx)

	var spots []*model.Spot
	if err = cursor.All(ctx, &spots); err != nil {
		return nil, fmt.Errorf("failed to decode spots: %w", err)
	}

	return spots, nil
}

func (r *mongoSpotRepository) Update(ctx context.Context, id string, fields bson.M) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", spoterrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": fields})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return spoterrors.ErrDuplicateNumber
		}
		return fmt.Errorf("failed to update spot: %w", err)
	}
	if result.MatchedCount == 0 {
		return spoterrors.ErrNotFound
	}

	return nil
}

// UpdateStatus performs a compare-and-set on the status field. The filter
// includes the expected current status so concurrent transitions lose
// cleanly instead of clobbering each other.
func (r *mongoSpotRepository) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", spoterrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": fromStatus},
		bson.M{"$set": bson.M{"status": toStatus}},
	)
	if err != nil {
		return fmt.Errorf("failed to update spot status: %w", err)
	}
	if result.MatchedCount == 0 {
		return spoterrors.ErrStatusChanged
	}

	return nil
}

func (r *mongoSpotRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", spoterrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete spot: %w", err)
	}
	if result.DeletedCount == 0 {
		return spoterrors.ErrNotFound
	}

	return nil
}

func (r *mongoSpotRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count spots: %w", err)
	}

	return count, nil
}

func (r *mongoSpotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
