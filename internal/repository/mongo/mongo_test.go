package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/repository"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// testClient is nil when no docker daemon is reachable.
var testClient *mongo.Client

func TestMain(m *testing.M) {
	os.Exit(runWithMongo(m))
}

// runWithMongo starts a single node replica set, transactions need one.
func runWithMongo(m *testing.M) int {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Warnf("could not create dockertest pool, mongo tests skipped: %s", err)
		return m.Run()
	}
	if err := pool.Client.Ping(); err != nil {
		log.Warnf("could not ping docker, mongo tests skipped: %s", err)
		return m.Run()
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mongo",
		Tag:        "7.0",
		Cmd:        []string{"--replSet", "rs0", "--bind_ip_all"},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		log.Errorf("dockerpool run mongo: %s", err)
		return 1
	}
	defer func() {
		if err := resource.Close(); err != nil {
			log.Errorf("mongo teardown: %s", err)
		}
	}()
	if err := resource.Expire(300); err != nil {
		log.Warnf("set mongo container expiry: %s", err)
	}

	uri := fmt.Sprintf("mongodb://localhost:%s/?directConnection=true", resource.GetPort("27017/tcp"))
	pool.MaxWait = 2 * time.Minute
	if err := pool.Retry(func() error {
		return initReplicaSet(uri)
	}); err != nil {
		log.Errorf("mongo replica set never became primary: %s", err)
		return 1
	}

	testClient, err = ConnectDB(uri)
	if err != nil {
		log.Errorf("connect to mongo: %s", err)
		return 1
	}
	defer func() {
		if err := DisconnectDB(testClient); err != nil {
			log.Errorf("disconnect mongo: %s", err)
		}
	}()

	return m.Run()
}

func initReplicaSet(uri string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(ctx) }()

	admin := client.Database("admin")
	err = admin.RunCommand(ctx, bson.D{{Key: "replSetInitiate", Value: bson.M{
		"_id":     "rs0",
		"members": bson.A{bson.M{"_id": 0, "host": "localhost:27017"}},
	}}}).Err()
	var cmdErr mongo.CommandError
	if err != nil && !(errors.As(err, &cmdErr) && cmdErr.Name == "AlreadyInitialized") {
		return err
	}

	var hello struct {
		IsWritablePrimary bool `bson:"isWritablePrimary"`
	}
	if err := admin.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return err
	}
	if !hello.IsWritablePrimary {
		return errors.New("replica set has no primary yet")
	}
	return nil
}

// newTestDB returns an empty database with all indexes in place.
func newTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testClient == nil {
		t.Skip("docker is not available")
	}

	db := testClient.Database("coaching_test_" + primitive.NewObjectID().Hex())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, EnsureIndexes(ctx, db))

	t.Cleanup(func() {
		if err := db.Drop(context.Background()); err != nil {
			t.Logf("drop %s: %s", db.Name(), err)
		}
	})
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAttendance_CreateIfAbsent(t *testing.T) {
	db := newTestDB(t)
	repo := NewMongoAttendanceRepository(db)
	ctx := t.Context()
	clientID := primitive.NewObjectID()
	first, second := primitive.NewObjectID(), primitive.NewObjectID()

	rec := &domain.AttendanceRecord{ClientID: clientID, TrainerID: first, WorkoutDate: day(2024, 3, 6), Status: true}
	created, err := repo.CreateIfAbsent(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, primitive.NilObjectID, rec.ID)

	again := &domain.AttendanceRecord{ClientID: clientID, TrainerID: second, WorkoutDate: day(2024, 3, 6), Status: true}
	created, err = repo.CreateIfAbsent(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, rec.ID, again.ID)
	assert.Equal(t, first, again.TrainerID)

	_, err = repo.CreateIfAbsent(ctx, &domain.AttendanceRecord{ClientID: clientID})
	assert.Error(t, err)

	records, err := repo.ListByClientBetween(ctx, clientID, day(2024, 3, 1), day(2024, 3, 31))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAttendance_ConcurrentMarksStoreOneRecord(t *testing.T) {
	db := newTestDB(t)
	repo := NewMongoAttendanceRepository(db)
	ctx := t.Context()
	clientID := primitive.NewObjectID()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.CreateIfAbsent(ctx, &domain.AttendanceRecord{
				ClientID:    clientID,
				TrainerID:   primitive.NewObjectID(),
				WorkoutDate: day(2024, 3, 8),
				Status:      true,
			})
			if !assert.NoError(t, err) {
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	records, err := repo.ListByClientBetween(ctx, clientID, day(2024, 3, 8), day(2024, 3, 8))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestWeekPeriods_UniqueWeek(t *testing.T) {
	db := newTestDB(t)
	repo := NewMongoWeekPeriodRepository(db)
	ctx := t.Context()
	clientID, trainerID := primitive.NewObjectID(), primitive.NewObjectID()

	_, err := repo.Create(ctx, &domain.WeekPeriod{ClientID: clientID, TrainerID: trainerID, WeekNo: 1, WeekStartDate: day(2024, 3, 4)})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &domain.WeekPeriod{ClientID: clientID, TrainerID: trainerID, WeekNo: 1, WeekStartDate: day(2024, 3, 11)})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = repo.Create(ctx, &domain.WeekPeriod{ClientID: clientID, TrainerID: trainerID, WeekNo: 2, WeekStartDate: day(2024, 3, 10)})
	require.NoError(t, err)

	list, err := repo.ListByClientID(ctx, clientID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].WeekNo)
	assert.Equal(t, 1, list[1].WeekNo)
}

func TestWeekPeriods_CloseStoresEntries(t *testing.T) {
	db := newTestDB(t)
	periods := NewMongoWeekPeriodRepository(db)
	entries := NewMongoDailyEntryRepository(db)
	ctx := t.Context()
	clientID := primitive.NewObjectID()

	id, err := periods.Create(ctx, &domain.WeekPeriod{ClientID: clientID, TrainerID: primitive.NewObjectID(), WeekNo: 1})
	require.NoError(t, err)
	entry := func(dayNo int, workout string) *domain.DailyEntry {
		return &domain.DailyEntry{PeriodID: id, ClientID: clientID, WeekNo: 1, DayNo: dayNo, WorkoutType: workout}
	}

	err = periods.Close(ctx, id, time.Now().UTC(), []*domain.DailyEntry{entry(1, "Squat"), entry(2, "")})
	require.Error(t, err)
	p, err := periods.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, p.Closed)

	require.NoError(t, periods.Close(ctx, id, time.Now().UTC(), []*domain.DailyEntry{entry(2, "Bench"), entry(1, "Squat")}))
	p, err = periods.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Closed)
	assert.NotNil(t, p.ClosedAt)

	// the second close loses and its entries are rolled back
	err = periods.Close(ctx, id, time.Now().UTC(), []*domain.DailyEntry{entry(3, "Row")})
	assert.ErrorIs(t, err, repository.ErrConflict)
	err = periods.Close(ctx, primitive.NewObjectID(), time.Now().UTC(), nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	stored, err := entries.ListByPeriodIDs(ctx, []primitive.ObjectID{id})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Squat", stored[0].WorkoutType)
	assert.Equal(t, "Bench", stored[1].WorkoutType)
}

func TestWeekPeriods_ConcurrentClose(t *testing.T) {
	db := newTestDB(t)
	periods := NewMongoWeekPeriodRepository(db)
	entries := NewMongoDailyEntryRepository(db)
	ctx := t.Context()
	clientID := primitive.NewObjectID()

	id, err := periods.Create(ctx, &domain.WeekPeriod{ClientID: clientID, TrainerID: primitive.NewObjectID(), WeekNo: 1})
	require.NoError(t, err)

	const workers = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := periods.Close(ctx, id, time.Now().UTC(), []*domain.DailyEntry{
				{PeriodID: id, ClientID: clientID, DayNo: 1, WorkoutType: "Squat"},
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, repository.ErrConflict)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	stored, err := entries.ListByPeriodIDs(ctx, []primitive.ObjectID{id})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestAssignments_Reassign(t *testing.T) {
	db := newTestDB(t)
	clients := NewMongoClientRepository(db)
	assignments := NewMongoAssignmentRepository(db)
	ctx := t.Context()
	trainerID := primitive.NewObjectID()

	client := &domain.Client{Name: "Ana", Email: "ana@example.com", NewClient: true}
	_, err := clients.Create(ctx, client)
	require.NoError(t, err)

	first := &domain.ProgramAssignment{ClientID: client.ID, ProgramID: primitive.NewObjectID(), TrainerID: trainerID, WorkoutDays: []string{"monday"}}
	firstID, err := assignments.Reassign(ctx, first)
	require.NoError(t, err)

	second := &domain.ProgramAssignment{ClientID: client.ID, ProgramID: primitive.NewObjectID(), TrainerID: trainerID, WorkoutDays: []string{"tuesday"}}
	secondID, err := assignments.Reassign(ctx, second)
	require.NoError(t, err)

	prev, err := assignments.GetByID(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentInactive, prev.Status)

	stored, err := clients.GetByID(ctx, client.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ActiveAssignment)
	assert.Equal(t, secondID, *stored.ActiveAssignment)

	active, err := assignments.GetActiveByTrainerID(ctx, trainerID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, secondID, active[0].ID)

	// an unknown client rolls the whole reassignment back
	_, err = assignments.Reassign(ctx, &domain.ProgramAssignment{ClientID: primitive.NewObjectID(), ProgramID: primitive.NewObjectID(), TrainerID: trainerID})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	active, err = assignments.GetActiveByTrainerID(ctx, trainerID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestClients_UniqueEmail(t *testing.T) {
	db := newTestDB(t)
	clients := NewMongoClientRepository(db)
	ctx := t.Context()

	_, err := clients.Create(ctx, &domain.Client{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	_, err = clients.Create(ctx, &domain.Client{Name: "Ana B", Email: "ana@example.com"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = clients.GetByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
