package mongo

import (
	"context"
	"errors"
	"time"

	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoWeekPeriodRepository implements repository.WeekPeriodRepository
type mongoWeekPeriodRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
	entries    *mongo.Collection
}

// NewMongoWeekPeriodRepository creates a new WeekPeriod repository.
func NewMongoWeekPeriodRepository(db *mongo.Database) repository.WeekPeriodRepository {
	return &mongoWeekPeriodRepository{
		db:         db,
		collection: db.Collection(weekPeriodCollectionName),
		entries:    db.Collection(dailyEntryCollectionName),
	}
}

// Create inserts a new period. The unique (clientId, weekNo) index turns a
// second period with the same number into repository.ErrConflict.
func (r *mongoWeekPeriodRepository) Create(ctx context.Context, period *domain.WeekPeriod) (primitive.ObjectID, error) {
	if period.ClientID == primitive.NilObjectID || period.TrainerID == primitive.NilObjectID || period.WeekNo < 1 {
		return primitive.NilObjectID, errors.New("period requires clientId, trainerId and a positive weekNo")
	}
	period.ID = primitive.NewObjectID()
	period.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, period)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted period ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single period by its ID.
func (r *mongoWeekPeriodRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WeekPeriod, error) {
	var period domain.WeekPeriod
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&period)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &period, nil
}

// ListByClientID retrieves all periods of a client, most recent first.
func (r *mongoWeekPeriodRepository) ListByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.WeekPeriod, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "weekNo", Value: -1}, {Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"clientId": clientID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	periods := []domain.WeekPeriod{}
	if err = cursor.All(ctx, &periods); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return periods, nil
}

// Close inserts the period's entries and marks it closed inside a
// transaction. The filter only matches open periods so two concurrent closes
// cannot both succeed, and the loser's entries are rolled back with it.
func (r *mongoWeekPeriodRepository) Close(ctx context.Context, id primitive.ObjectID, closedAt time.Time, entries []*domain.DailyEntry) error {
	for _, e := range entries {
		if e.PeriodID != id || e.WorkoutType == "" {
			return errors.New("daily entry requires the closing periodId and a workoutType")
		}
	}

	session, err := r.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		filter := bson.M{"_id": id, "closed": false}
		update := bson.M{"$set": bson.M{"closed": true, "closedAt": closedAt}}

		result, err := r.collection.UpdateOne(sc, filter, update)
		if err != nil {
			return nil, err
		}
		if result.MatchedCount == 0 {
			count, err := r.collection.CountDocuments(sc, bson.M{"_id": id})
			if err != nil {
				return nil, err
			}
			if count == 0 {
				return nil, repository.ErrNotFound
			}
			return nil, repository.ErrConflict
		}

		if len(entries) == 0 {
			return nil, nil
		}
		now := time.Now().UTC()
		docs := make([]interface{}, len(entries))
		for i, e := range entries {
			e.ID = primitive.NewObjectID()
			e.CreatedAt = now
			docs[i] = e
		}
		if _, err := r.entries.InsertMany(sc, docs, options.InsertMany().SetOrdered(true)); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func weekPeriodIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			// One period per week number per client; guards the rollover race
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "weekNo", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}},
			Options: options.Index(),
		},
	}
}
