package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"frontline/coaching-app/internal/calendar"
	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/metrics"
	"frontline/coaching-app/internal/repository/memory"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	store   *memory.Store
	metrics *metrics.Manager
	reports *fakeReportStorage

	rotation      RotationService
	attendance    AttendanceService
	consultations ConsultationService
	assignments   AssignmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	m := metrics.NewTestManager()
	reports := newFakeReportStorage()

	rotation := NewRotationService(store.Clients(), store.Users(), store.Assignments(), store.WeekPeriods(), store.DailyEntries(), m)
	return &fixture{
		store:    store,
		metrics:  m,
		reports:  reports,
		rotation: rotation,
		attendance: NewAttendanceService(store.Clients(), store.Users(), store.Assignments(), store.Attendance(), reports, AttendanceOptions{
			ReportPrefix: "reports/attendance",
			URLExpiry:    time.Minute,
		}, m),
		consultations: NewConsultationService(store.Clients(), store.Users(), store.Consultations(), rotation),
		assignments:   NewAssignmentService(store.Clients(), store.Users(), store.Assignments()),
	}
}

func (f *fixture) newUser(t *testing.T, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{
		Name:  gofakeit.Name(),
		Email: gofakeit.Email(),
		Role:  role,
	}
	_, err := f.store.Users().Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

func (f *fixture) newClient(t *testing.T) *domain.Client {
	t.Helper()
	c := &domain.Client{
		Name:      gofakeit.Name(),
		Email:     gofakeit.Email(),
		Phone:     gofakeit.Phone(),
		NewClient: true,
	}
	_, err := f.store.Clients().Create(context.Background(), c)
	require.NoError(t, err)
	return c
}

func (f *fixture) assign(t *testing.T, clientID, trainerID primitive.ObjectID, days ...string) *domain.ProgramAssignment {
	t.Helper()
	a, err := f.assignments.AssignProgram(context.Background(), AssignProgramInput{
		ClientID:    clientID,
		ProgramID:   primitive.NewObjectID(),
		TrainerID:   trainerID,
		WorkoutDays: days,
	})
	require.NoError(t, err)
	return a
}

// startedClient is a client on a Mon/Wed/Fri program whose rotation started
// on Monday 2024-03-04.
func (f *fixture) startedClient(t *testing.T, trainer *domain.User) (*domain.Client, *domain.WeekPeriod) {
	t.Helper()
	client := f.newClient(t)
	f.assign(t, client.ID, trainer.ID, "monday", "wednesday", "friday")
	period, err := f.rotation.StartRotation(context.Background(), client.ID, trainer.ID, date("2024-03-04"))
	require.NoError(t, err)
	return client, period
}

func (f *fixture) entryCount(t *testing.T, periodID primitive.ObjectID) int {
	t.Helper()
	entries, err := f.store.DailyEntries().ListByPeriodIDs(context.Background(), []primitive.ObjectID{periodID})
	require.NoError(t, err)
	return len(entries)
}

func date(s string) time.Time {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func intPtr(v int) *int { return &v }

type fakeReportStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	presignErr error
}

func newFakeReportStorage() *fakeReportStorage {
	return &fakeReportStorage{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (s *fakeReportStorage) PutObject(_ context.Context, key string, contentType string, body io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = buf.Bytes()
	s.types[key] = contentType
	return nil
}

func (s *fakeReportStorage) GeneratePresignedDownloadURL(_ context.Context, key string, expires time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presignErr != nil {
		return "", s.presignErr
	}
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("no object %s", key)
	}
	return fmt.Sprintf("https://reports.test/%s?expires=%d", key, int(expires.Seconds())), nil
}

func (s *fakeReportStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeReportStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *fakeReportStorage) object(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return string(b), ok
}
