package mongo

import (
	"context"

	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoDailyEntryRepository struct {
	collection *mongo.Collection
}

// NewMongoDailyEntryRepository creates a new DailyEntry repository.
func NewMongoDailyEntryRepository(db *mongo.Database) repository.DailyEntryRepository {
	return &mongoDailyEntryRepository{
		collection: db.Collection(dailyEntryCollectionName),
	}
}

// ListByPeriodIDs retrieves the entries of the given periods.
func (r *mongoDailyEntryRepository) ListByPeriodIDs(ctx context.Context, periodIDs []primitive.ObjectID) ([]domain.DailyEntry, error) {
	if len(periodIDs) == 0 {
		return []domain.DailyEntry{}, nil
	}

	filter := bson.M{"periodId": bson.M{"$in": periodIDs}}
	findOptions := options.Find().SetSort(bson.D{{Key: "dayNo", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []domain.DailyEntry{}
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func dailyEntryIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "periodId", Value: 1}, {Key: "dayNo", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "workoutDate", Value: 1}},
			Options: options.Index(),
		},
	}
}
