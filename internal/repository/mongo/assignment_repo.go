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

// mongoAssignmentRepository implements repository.ProgramAssignmentRepository
type mongoAssignmentRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
	clients    *mongo.Collection
}

// NewMongoAssignmentRepository creates a new ProgramAssignment repository backed by MongoDB.
func NewMongoAssignmentRepository(db *mongo.Database) repository.ProgramAssignmentRepository {
	return &mongoAssignmentRepository{
		db:         db,
		collection: db.Collection(assignmentCollectionName),
		clients:    db.Collection(clientCollectionName),
	}
}

// GetByID retrieves an assignment by its ID.
func (r *mongoAssignmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ProgramAssignment, error) {
	var assignment domain.ProgramAssignment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&assignment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &assignment, nil
}

// GetActiveByTrainerID retrieves the active assignments the trainer is responsible for.
func (r *mongoAssignmentRepository) GetActiveByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.ProgramAssignment, error) {
	filter := bson.M{"trainerId": trainerID, "status": domain.AssignmentActive}
	findOptions := options.Find().SetSort(bson.D{{Key: "assignedAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	assignments := []domain.ProgramAssignment{}
	if err = cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// Reassign inserts the assignment as the client's active one inside a
// transaction: the previous active assignment is deactivated and the client's
// activeAssignmentId is repointed. Transactions need a replica set.
func (r *mongoAssignmentRepository) Reassign(ctx context.Context, assignment *domain.ProgramAssignment) (primitive.ObjectID, error) {
	if assignment.ClientID == primitive.NilObjectID || assignment.ProgramID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("assignment requires clientId and programId")
	}

	session, err := r.db.Client().StartSession()
	if err != nil {
		return primitive.NilObjectID, err
	}
	defer session.EndSession(ctx)

	now := time.Now().UTC()
	assignment.ID = primitive.NewObjectID()
	assignment.Status = domain.AssignmentActive
	assignment.AssignedAt = now
	assignment.UpdatedAt = now

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var client domain.Client
		if err := r.clients.FindOne(sc, bson.M{"_id": assignment.ClientID}).Decode(&client); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, repository.ErrNotFound
			}
			return nil, err
		}

		if client.ActiveAssignment != nil {
			_, err := r.collection.UpdateOne(sc,
				bson.M{"_id": *client.ActiveAssignment},
				bson.M{"$set": bson.M{"status": domain.AssignmentInactive, "updatedAt": now}},
			)
			if err != nil {
				return nil, err
			}
		}

		if _, err := r.collection.InsertOne(sc, assignment); err != nil {
			return nil, err
		}

		result, err := r.clients.UpdateOne(sc,
			bson.M{"_id": assignment.ClientID},
			bson.M{"$set": bson.M{"activeAssignmentId": assignment.ID, "updatedAt": now}},
		)
		if err != nil {
			return nil, err
		}
		if result.MatchedCount == 0 {
			return nil, repository.ErrNotFound
		}
		return nil, nil
	})
	if err != nil {
		return primitive.NilObjectID, err
	}
	return assignment.ID, nil
}

func assignmentIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}},
			Options: options.Index(),
		},
		{
			// Daily attendance list: active assignments of one trainer
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index(),
		},
	}
}
