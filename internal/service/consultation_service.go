package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"frontline/coaching-app/internal/calendar"
	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScheduleInput books a consultation for a client with the calling user.
type ScheduleInput struct {
	ClientID       primitive.ObjectID
	UserID         primitive.ObjectID
	ScheduledAt    time.Time
	ConsultationNo int
	Notes          string
	// WorkoutStartDate starts the rotation when the second consultation is
	// recorded.
	WorkoutStartDate *time.Time
}

type ScheduleResult struct {
	Consultation domain.Consultation
	Stage        domain.ConsultationStage
	// ClosedPrevious is the open consultation marked done by this booking.
	ClosedPrevious *primitive.ObjectID
	// FirstPeriod is set when the booking started the client's rotation.
	FirstPeriod *domain.WeekPeriod
}

type IntakeInput struct {
	ClientID     primitive.ObjectID
	UserID       primitive.ObjectID
	Goals        string
	Injuries     string
	FitnessLevel string
	Notes        string
}

type PendingConsultation struct {
	Consultation domain.Consultation
	Client       domain.Client
}

type ConsultationService interface {
	ScheduleConsultation(ctx context.Context, input ScheduleInput) (*ScheduleResult, error)
	RecordTrainerIntake(ctx context.Context, input IntakeInput) (*domain.TrainerIntake, error)
	// ListPendingConsultations returns the user's open consultations with
	// clients that are ready for the trainer.
	ListPendingConsultations(ctx context.Context, userID primitive.ObjectID) ([]PendingConsultation, error)
}

type consultationService struct {
	clientRepo       repository.ClientRepository
	userRepo         repository.UserRepository
	consultationRepo repository.ConsultationRepository
	rotation         RotationService
}

func NewConsultationService(
	clientRepo repository.ClientRepository,
	userRepo repository.UserRepository,
	consultationRepo repository.ConsultationRepository,
	rotation RotationService,
) ConsultationService {
	return &consultationService{
		clientRepo:       clientRepo,
		userRepo:         userRepo,
		consultationRepo: consultationRepo,
		rotation:         rotation,
	}
}

var stageRank = map[domain.ConsultationStage]int{
	"":                            0,
	domain.StagePending:           0,
	domain.StageScheduled:         1,
	domain.StageFirstDone:         2,
	domain.StageTrainerIntakeDone: 3,
}

// advanceStage never moves a client backwards.
func advanceStage(current, next domain.ConsultationStage) domain.ConsultationStage {
	if stageRank[next] > stageRank[current] {
		return next
	}
	return current
}

func (s *consultationService) ScheduleConsultation(ctx context.Context, input ScheduleInput) (*ScheduleResult, error) {
	if input.ConsultationNo < 1 {
		return nil, invalidInput("consultation number must be positive, got %d", input.ConsultationNo)
	}
	if input.ScheduledAt.IsZero() {
		return nil, invalidInput("consultation datetime is required")
	}

	client, err := findClient(ctx, s.clientRepo, input.ClientID)
	if err != nil {
		return nil, err
	}
	if err := checkUser(ctx, s.userRepo, input.UserID); err != nil {
		return nil, err
	}

	// The rotation starts before the booking is written, so a failed start
	// leaves nothing behind. A rotation that already runs is kept as is.
	var firstPeriod *domain.WeekPeriod
	if input.ConsultationNo == 2 && input.WorkoutStartDate != nil {
		firstPeriod, err = s.startRotation(ctx, client, input)
		if err != nil {
			return nil, err
		}
	}

	open, err := s.consultationRepo.ListOpenByClientAndUser(ctx, input.ClientID, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("list open consultations: %w", err)
	}

	consultation := &domain.Consultation{
		ClientID:       input.ClientID,
		UserID:         input.UserID,
		ScheduledAt:    input.ScheduledAt.UTC(),
		ConsultationNo: input.ConsultationNo,
		Notes:          strings.TrimSpace(input.Notes),
	}
	id, err := s.consultationRepo.Create(ctx, consultation)
	if err != nil {
		return nil, fmt.Errorf("create consultation: %w", err)
	}
	consultation.ID = id

	result := &ScheduleResult{Consultation: *consultation}

	// the newest consultation booked before this one is now done
	if len(open) > 0 {
		prev := open[0].ID
		if err := s.consultationRepo.MarkDone(ctx, prev); err != nil {
			return nil, fmt.Errorf("close previous consultation: %w", err)
		}
		result.ClosedPrevious = &prev
	}

	stage := advanceStage(client.ConsultationStage, domain.StageScheduled)
	var newClient *bool
	if input.ConsultationNo == 2 {
		stage = advanceStage(stage, domain.StageFirstDone)
		notNew := false
		newClient = &notNew
	}
	if err := s.clientRepo.UpdateConsultationStage(ctx, input.ClientID, stage, newClient); err != nil {
		return nil, fmt.Errorf("update consultation stage: %w", err)
	}
	result.Stage = stage
	result.FirstPeriod = firstPeriod

	return result, nil
}

// startRotation returns nil without error when the client's rotation is
// already running.
func (s *consultationService) startRotation(ctx context.Context, client *domain.Client, input ScheduleInput) (*domain.WeekPeriod, error) {
	logger := log.WithField("client", input.ClientID.Hex())
	if client.WorkoutStartDate != nil {
		logger.Infof("rotation already started on %s, start date ignored", calendar.FormatDate(*client.WorkoutStartDate))
		return nil, nil
	}

	period, err := s.rotation.StartRotation(ctx, input.ClientID, input.UserID, *input.WorkoutStartDate)
	if err != nil {
		if errors.Is(err, ErrAlreadyAdvanced) {
			logger.Info("rotation already started, start date ignored")
			return nil, nil
		}
		return nil, err
	}
	logger.WithField("start", calendar.FormatDate(period.WeekStartDate)).Info("rotation started from second consultation")
	return period, nil
}

func (s *consultationService) RecordTrainerIntake(ctx context.Context, input IntakeInput) (*domain.TrainerIntake, error) {
	if _, err := findClient(ctx, s.clientRepo, input.ClientID); err != nil {
		return nil, err
	}
	if err := checkUser(ctx, s.userRepo, input.UserID); err != nil {
		return nil, err
	}

	intake := &domain.TrainerIntake{
		ClientID:     input.ClientID,
		UserID:       input.UserID,
		Goals:        strings.TrimSpace(input.Goals),
		Injuries:     strings.TrimSpace(input.Injuries),
		FitnessLevel: strings.TrimSpace(input.FitnessLevel),
		Notes:        strings.TrimSpace(input.Notes),
	}
	id, err := s.consultationRepo.CreateIntake(ctx, intake)
	if err != nil {
		return nil, fmt.Errorf("create trainer intake: %w", err)
	}
	intake.ID = id

	if err := s.clientRepo.UpdateConsultationStage(ctx, input.ClientID, domain.StageTrainerIntakeDone, nil); err != nil {
		return nil, fmt.Errorf("update consultation stage: %w", err)
	}
	return intake, nil
}

func (s *consultationService) ListPendingConsultations(ctx context.Context, userID primitive.ObjectID) ([]PendingConsultation, error) {
	open, err := s.consultationRepo.ListOpenByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list open consultations: %w", err)
	}
	if len(open) == 0 {
		return []PendingConsultation{}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(open))
	for _, c := range open {
		ids = append(ids, c.ClientID)
	}
	clients, err := s.clientRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get clients: %w", err)
	}
	byID := make(map[primitive.ObjectID]domain.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}

	out := make([]PendingConsultation, 0, len(open))
	for _, c := range open {
		client, ok := byID[c.ClientID]
		if !ok {
			continue
		}
		switch client.ConsultationStage {
		case domain.StageFirstDone, domain.StageTrainerIntakeDone:
			out = append(out, PendingConsultation{Consultation: c, Client: client})
		}
	}
	return out, nil
}
