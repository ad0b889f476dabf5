// Package memory implements the repository interfaces on process memory.
// It backs the "memory" database driver for local runs and the service and
// API tests. One mutex guards the whole store, which makes every method,
// including the multi-document Reassign, atomic.
package memory

import (
	"sync"

	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type attendanceKey struct {
	clientID primitive.ObjectID
	date     int64
}

// Store holds every collection.
type Store struct {
	mu sync.Mutex

	users         map[primitive.ObjectID]domain.User
	clients       map[primitive.ObjectID]domain.Client
	assignments   map[primitive.ObjectID]domain.ProgramAssignment
	periods       map[primitive.ObjectID]domain.WeekPeriod
	entries       []domain.DailyEntry
	attendance    map[attendanceKey]domain.AttendanceRecord
	consultations map[primitive.ObjectID]domain.Consultation
	intakes       []domain.TrainerIntake
}

func NewStore() *Store {
	return &Store{
		users:         make(map[primitive.ObjectID]domain.User),
		clients:       make(map[primitive.ObjectID]domain.Client),
		assignments:   make(map[primitive.ObjectID]domain.ProgramAssignment),
		periods:       make(map[primitive.ObjectID]domain.WeekPeriod),
		attendance:    make(map[attendanceKey]domain.AttendanceRecord),
		consultations: make(map[primitive.ObjectID]domain.Consultation),
	}
}

func (s *Store) Users() repository.UserRepository { return &userRepo{s} }

func (s *Store) Clients() repository.ClientRepository { return &clientRepo{s} }

func (s *Store) Assignments() repository.ProgramAssignmentRepository { return &assignmentRepo{s} }

func (s *Store) WeekPeriods() repository.WeekPeriodRepository { return &weekPeriodRepo{s} }

func (s *Store) DailyEntries() repository.DailyEntryRepository { return &dailyEntryRepo{s} }

func (s *Store) Attendance() repository.AttendanceRepository { return &attendanceRepo{s} }

func (s *Store) Consultations() repository.ConsultationRepository { return &consultationRepo{s} }
