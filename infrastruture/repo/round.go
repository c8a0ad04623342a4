package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beka-birhanu/mazesync/service/i"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RoundRepo handles the persistence of finished rounds in MongoDB.
type RoundRepo struct {
	collection *mongo.Collection
}

// NewRoundRepo creates a new RoundRepo with the given MongoDB client, database name, and collection name.
func NewRoundRepo(client *mongo.Client, dbName, collectionName string) *RoundRepo {
	collection := client.Database(dbName).Collection(collectionName)
	return &RoundRepo{
		collection: collection,
	}
}

// Save inserts or updates a round.
func (r *RoundRepo) Save(ctx context.Context, round *i.Round) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	filter := bson.M{"_id": round.ID}
	update := bson.M{
		"$set": bson.M{
			"seed":       round.Seed,
			"width":      round.Width,
			"height":     round.Height,
			"winnerId":   round.WinnerID,
			"moves":      round.Moves,
			"startedAt":  round.StartedAt,
			"finishedAt": round.FinishedAt,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("saving round %s: %w", round.ID, err)
	}
	return nil
}

// ByID retrieves a round by its ID.
func (r *RoundRepo) ByID(ctx context.Context, id uuid.UUID) (*i.Round, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var round i.Round
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&round); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", i.ErrRoundNotFound, id)
		}
		return nil, fmt.Errorf("unexpected error: %w", err)
	}
	return &round, nil
}

// Recent returns up to limit rounds ordered by finish time, newest first.
func (r *RoundRepo) Recent(ctx context.Context, limit int) ([]i.Round, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "finishedAt", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("unexpected error: %w", err)
	}
	defer cur.Close(ctx)

	rounds := make([]i.Round, 0, limit)
	if err := cur.All(ctx, &rounds); err != nil {
		return nil, fmt.Errorf("decoding rounds: %w", err)
	}
	return rounds, nil
}
