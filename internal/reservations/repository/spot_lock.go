package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"parkly/pkg/config"
	"parkly/pkg/model"
)

const (
	LockCollectionName = "Spot_locks"
)

// SpotLockRepository provides operations for advisory locks
type SpotLockRepository interface {
	Create(ctx context.Context, lock *model.SpotLock) (*model.SpotLock, error)
	Delete(ctx context.Context, lockID string) error
}

type mongoSpotLockRepository struct {
	collection *mongo.Collection
}

func NewSpotLockRepository(cfg *config.Config) SpotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSpotLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Returns duplicate key error if lock already exists
func (r *mongoSpotLockRepository) Create(ctx context.Context, lock *model.SpotLock) (*model.SpotLock, error) {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		return nil, err
	}

	return lock, nil
}

// Delete removes an advisory lock
func (r *mongoSpotLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
