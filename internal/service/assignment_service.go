package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"frontline/coaching-app/internal/calendar"
	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const timeSlotLayout = "15:04"

type AssignProgramInput struct {
	ClientID      primitive.ObjectID
	ProgramID     primitive.ObjectID
	TrainerID     primitive.ObjectID
	DietitianID   *primitive.ObjectID
	WorkoutDays   []string
	PreferredTime []domain.TimeSlot
}

type AssignmentService interface {
	// AssignProgram makes a new assignment the client's active one. The
	// previous active assignment, if any, becomes inactive.
	AssignProgram(ctx context.Context, input AssignProgramInput) (*domain.ProgramAssignment, error)
}

type assignmentService struct {
	clientRepo     repository.ClientRepository
	userRepo       repository.UserRepository
	assignmentRepo repository.ProgramAssignmentRepository
}

func NewAssignmentService(
	clientRepo repository.ClientRepository,
	userRepo repository.UserRepository,
	assignmentRepo repository.ProgramAssignmentRepository,
) AssignmentService {
	return &assignmentService{
		clientRepo:     clientRepo,
		userRepo:       userRepo,
		assignmentRepo: assignmentRepo,
	}
}

func (s *assignmentService) AssignProgram(ctx context.Context, input AssignProgramInput) (*domain.ProgramAssignment, error) {
	if input.ProgramID.IsZero() {
		return nil, invalidInput("programId is required")
	}
	days, err := calendar.NormalizeDayNames(input.WorkoutDays)
	if err != nil {
		return nil, invalidInput("workout days: %v", err)
	}
	if len(days) == 0 {
		return nil, invalidInput("at least one workout day is required")
	}
	for i, slot := range input.PreferredTime {
		if err := validateTimeSlot(slot); err != nil {
			return nil, invalidInput("preferred time %d: %v", i+1, err)
		}
	}

	if _, err := findClient(ctx, s.clientRepo, input.ClientID); err != nil {
		return nil, err
	}
	if err := checkUser(ctx, s.userRepo, input.TrainerID); err != nil {
		return nil, err
	}
	if input.DietitianID != nil {
		if err := checkUser(ctx, s.userRepo, *input.DietitianID); err != nil {
			return nil, err
		}
	}

	assignment := &domain.ProgramAssignment{
		ClientID:      input.ClientID,
		ProgramID:     input.ProgramID,
		TrainerID:     input.TrainerID,
		DietitianID:   input.DietitianID,
		WorkoutDays:   days,
		PreferredTime: input.PreferredTime,
	}
	id, err := s.assignmentRepo.Reassign(ctx, assignment)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("reassign program: %w", err)
	}
	assignment.ID = id

	log.WithFields(log.Fields{
		"client":     input.ClientID.Hex(),
		"assignment": id.Hex(),
		"days":       days,
	}).Info("program assigned")

	return assignment, nil
}

func validateTimeSlot(slot domain.TimeSlot) error {
	start, err := time.Parse(timeSlotLayout, slot[0])
	if err != nil {
		return fmt.Errorf("invalid start %q, expected HH:MM", slot[0])
	}
	end, err := time.Parse(timeSlotLayout, slot[1])
	if err != nil {
		return fmt.Errorf("invalid end %q, expected HH:MM", slot[1])
	}
	if !end.After(start) {
		return fmt.Errorf("end %s is not after start %s", slot[1], slot[0])
	}
	return nil
}
