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

type mongoConsultationRepository struct {
	collection *mongo.Collection
	intakes    *mongo.Collection
}

// NewMongoConsultationRepository creates a new Consultation repository.
func NewMongoConsultationRepository(db *mongo.Database) repository.ConsultationRepository {
	return &mongoConsultationRepository{
		collection: db.Collection(consultationCollectionName),
		intakes:    db.Collection(trainerIntakeCollectionName),
	}
}

// Create inserts a new consultation.
func (r *mongoConsultationRepository) Create(ctx context.Context, consultation *domain.Consultation) (primitive.ObjectID, error) {
	if consultation.ClientID == primitive.NilObjectID || consultation.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("consultation requires clientId and userId")
	}
	consultation.ID = primitive.NewObjectID()
	consultation.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, consultation)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted consultation ID")
	}
	return insertedID, nil
}

// ListOpenByClientAndUser retrieves not-done consultations of a client with a
// staff member, newest schedule first.
func (r *mongoConsultationRepository) ListOpenByClientAndUser(ctx context.Context, clientID, userID primitive.ObjectID) ([]domain.Consultation, error) {
	return r.find(ctx, bson.M{"clientId": clientID, "userId": userID, "done": false})
}

// ListOpenByUser retrieves not-done consultations of a staff member.
func (r *mongoConsultationRepository) ListOpenByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Consultation, error) {
	return r.find(ctx, bson.M{"userId": userID, "done": false})
}

// MarkDone flags a consultation as done.
func (r *mongoConsultationRepository) MarkDone(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"done": true}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateIntake inserts the trainer's intake details.
func (r *mongoConsultationRepository) CreateIntake(ctx context.Context, intake *domain.TrainerIntake) (primitive.ObjectID, error) {
	if intake.ClientID == primitive.NilObjectID || intake.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("trainer intake requires clientId and userId")
	}
	intake.ID = primitive.NewObjectID()
	intake.CreatedAt = time.Now().UTC()

	if _, err := r.intakes.InsertOne(ctx, intake); err != nil {
		return primitive.NilObjectID, err
	}
	return intake.ID, nil
}

func (r *mongoConsultationRepository) find(ctx context.Context, filter bson.M) ([]domain.Consultation, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "scheduledAt", Value: -1}, {Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	consultations := []domain.Consultation{}
	if err = cursor.All(ctx, &consultations); err != nil {
		return nil, err
	}
	return consultations, nil
}

func consultationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "done", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "scheduledAt", Value: -1}},
			Options: options.Index(),
		},
	}
}

func trainerIntakeIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}},
			Options: options.Index(),
		},
	}
}
