package repository

import (
	"context"
	"time"

	"frontline/coaching-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrConflict     = RepositoryError("conflict")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository looks up staff members.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// ClientRepository defines the interface for interacting with client data.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Client, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Client, error)
	SetWorkoutStartDate(ctx context.Context, id primitive.ObjectID, start time.Time) error
	// UpdateConsultationStage sets the stage and, when newClient is not nil,
	// the new-client flag.
	UpdateConsultationStage(ctx context.Context, id primitive.ObjectID, stage domain.ConsultationStage, newClient *bool) error
}

// ProgramAssignmentRepository defines the interface for program-to-client links.
type ProgramAssignmentRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ProgramAssignment, error)
	GetActiveByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.ProgramAssignment, error)
	// Reassign stores the assignment as active, marks the client's previous
	// active assignment inactive and points the client at the new one, all
	// in one unit of work.
	Reassign(ctx context.Context, assignment *domain.ProgramAssignment) (primitive.ObjectID, error)
}

// WeekPeriodRepository persists rotation periods. Create returns ErrConflict
// when the client already has a period with the same week number.
type WeekPeriodRepository interface {
	Create(ctx context.Context, period *domain.WeekPeriod) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WeekPeriod, error)
	// ListByClientID returns the client's periods, highest week number first.
	ListByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.WeekPeriod, error)
	// Close stores the entries and flips an open period to closed as one
	// unit. ErrConflict if it was already closed, in which case no entry is
	// stored.
	Close(ctx context.Context, id primitive.ObjectID, closedAt time.Time, entries []*domain.DailyEntry) error
}

// DailyEntryRepository reads daily workout entries. Entries are written by
// WeekPeriodRepository.Close together with the period they belong to.
type DailyEntryRepository interface {
	// ListByPeriodIDs returns entries ordered by day number then creation time.
	ListByPeriodIDs(ctx context.Context, periodIDs []primitive.ObjectID) ([]domain.DailyEntry, error)
}

// AttendanceRepository stores at most one record per (client, date).
type AttendanceRepository interface {
	// CreateIfAbsent inserts the record unless one exists for the same client
	// and date. On return the record holds the stored values.
	CreateIfAbsent(ctx context.Context, record *domain.AttendanceRecord) (created bool, err error)
	ListByClientBetween(ctx context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.AttendanceRecord, error)
	ListByTrainerAndDate(ctx context.Context, trainerID primitive.ObjectID, date time.Time) ([]domain.AttendanceRecord, error)
}

// ConsultationRepository stores consultations and trainer intakes.
type ConsultationRepository interface {
	Create(ctx context.Context, consultation *domain.Consultation) (primitive.ObjectID, error)
	// ListOpenByClientAndUser returns not-done consultations, newest schedule first.
	ListOpenByClientAndUser(ctx context.Context, clientID, userID primitive.ObjectID) ([]domain.Consultation, error)
	ListOpenByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Consultation, error)
	MarkDone(ctx context.Context, id primitive.ObjectID) error
	CreateIntake(ctx context.Context, intake *domain.TrainerIntake) (primitive.ObjectID, error)
}
