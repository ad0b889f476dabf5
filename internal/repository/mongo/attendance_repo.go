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

type mongoAttendanceRepository struct {
	collection *mongo.Collection
}

// NewMongoAttendanceRepository creates a new Attendance repository.
func NewMongoAttendanceRepository(db *mongo.Database) repository.AttendanceRepository {
	return &mongoAttendanceRepository{
		collection: db.Collection(attendanceCollectionName),
	}
}

// CreateIfAbsent upserts on (clientId, workoutDate) with $setOnInsert, so an
// existing record is never touched and concurrent marks store one document.
func (r *mongoAttendanceRepository) CreateIfAbsent(ctx context.Context, record *domain.AttendanceRecord) (bool, error) {
	if record.ClientID == primitive.NilObjectID || record.WorkoutDate.IsZero() {
		return false, errors.New("attendance requires clientId and workoutDate")
	}

	id := primitive.NewObjectID()
	now := time.Now().UTC()
	filter := bson.M{"clientId": record.ClientID, "workoutDate": record.WorkoutDate}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":       id,
		"trainerId": record.TrainerID,
		"status":    record.Status,
		"createdAt": now,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return false, err
	}
	if err == nil && result.UpsertedCount == 1 {
		record.ID = id
		record.CreatedAt = now
		return true, nil
	}

	// Lost the race or already marked: report the stored record.
	var existing domain.AttendanceRecord
	if err := r.collection.FindOne(ctx, filter).Decode(&existing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, repository.ErrNotFound
		}
		return false, err
	}
	*record = existing
	return false, nil
}

// ListByClientBetween retrieves a client's records with from <= date <= to.
func (r *mongoAttendanceRepository) ListByClientBetween(ctx context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.AttendanceRecord, error) {
	filter := bson.M{
		"clientId":    clientID,
		"workoutDate": bson.M{"$gte": from, "$lte": to},
	}
	return r.find(ctx, filter)
}

// ListByTrainerAndDate retrieves the records a trainer made for a date.
func (r *mongoAttendanceRepository) ListByTrainerAndDate(ctx context.Context, trainerID primitive.ObjectID, date time.Time) ([]domain.AttendanceRecord, error) {
	return r.find(ctx, bson.M{"trainerId": trainerID, "workoutDate": date})
}

func (r *mongoAttendanceRepository) find(ctx context.Context, filter bson.M) ([]domain.AttendanceRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "workoutDate", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []domain.AttendanceRecord{}
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func attendanceIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "workoutDate", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "workoutDate", Value: 1}},
			Options: options.Index(),
		},
	}
}
