package mongo

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/multierr"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// Collection names
const (
	userCollectionName          = "users"
	clientCollectionName        = "clients"
	assignmentCollectionName    = "program_assignments"
	weekPeriodCollectionName    = "week_periods"
	dailyEntryCollectionName    = "daily_entries"
	attendanceCollectionName    = "attendance"
	consultationCollectionName  = "consultations"
	trainerIntakeCollectionName = "trainer_intakes"
)

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Ping the primary: Connect succeeds lazily even when the server is down.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection. Failures are
// collected so that one bad collection does not hide the others.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	var err error
	for name, indexes := range map[string][]mongo.IndexModel{
		userCollectionName:          userIndexes(),
		clientCollectionName:        clientIndexes(),
		assignmentCollectionName:    assignmentIndexes(),
		weekPeriodCollectionName:    weekPeriodIndexes(),
		dailyEntryCollectionName:    dailyEntryIndexes(),
		attendanceCollectionName:    attendanceIndexes(),
		consultationCollectionName:  consultationIndexes(),
		trainerIntakeCollectionName: trainerIntakeIndexes(),
	} {
		if _, createErr := db.Collection(name).Indexes().CreateMany(ctx, indexes); createErr != nil {
			err = multierr.Append(err, fmt.Errorf("create indexes for %s: %w", name, createErr))
			continue
		}
		log.Debugf("indexes ensured for collection %s", name)
	}
	return err
}
