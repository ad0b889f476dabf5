package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"frontline/coaching-app/internal/calendar"
	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/metrics"
	"frontline/coaching-app/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmitResult is the outcome of closing a period with its daily entries.
type SubmitResult struct {
	Period  *domain.WeekPeriod
	Entries []domain.DailyEntry
	Skipped int
	// Next is nil when the client has no workout start date on file.
	Next *domain.WeekPeriod
}

// PeriodWithEntries is a period together with the entries logged against it.
type PeriodWithEntries struct {
	domain.WeekPeriod
	Entries []domain.DailyEntry
}

type RotationService interface {
	// StartRotation records the client's workout start date and opens week 1.
	StartRotation(ctx context.Context, clientID, trainerID primitive.ObjectID, startDate time.Time) (*domain.WeekPeriod, error)
	// SubmitDailyEntries stores the entries of an open period, closes it and
	// opens the following week.
	SubmitDailyEntries(ctx context.Context, clientID, trainerID, periodID primitive.ObjectID, entries []DailyEntryInput) (*SubmitResult, error)
	// ListPeriods returns all periods of the client, most recent first.
	ListPeriods(ctx context.Context, clientID primitive.ObjectID) ([]PeriodWithEntries, error)
}

// rotationService implements the RotationService interface.
type rotationService struct {
	clientRepo  repository.ClientRepository
	userRepo    repository.UserRepository
	periodRepo  repository.WeekPeriodRepository
	entryRepo   repository.DailyEntryRepository
	assignments assignmentLookup
	generator   *PeriodGenerator
	metrics     *metrics.Manager
}

// NewRotationService creates a new instance of rotationService.
func NewRotationService(
	clientRepo repository.ClientRepository,
	userRepo repository.UserRepository,
	assignmentRepo repository.ProgramAssignmentRepository,
	periodRepo repository.WeekPeriodRepository,
	entryRepo repository.DailyEntryRepository,
	metricsManager *metrics.Manager,
) RotationService {
	return &rotationService{
		clientRepo:  clientRepo,
		userRepo:    userRepo,
		periodRepo:  periodRepo,
		entryRepo:   entryRepo,
		assignments: assignmentLookup{assignments: assignmentRepo},
		generator:   NewPeriodGenerator(periodRepo, metricsManager),
		metrics:     metricsManager,
	}
}

// StartRotation is invoked once, when the client's second consultation is
// recorded with a start date. A client without an active assignment still
// gets week 1, with zero program days.
func (s *rotationService) StartRotation(ctx context.Context, clientID, trainerID primitive.ObjectID, startDate time.Time) (*domain.WeekPeriod, error) {
	if startDate.IsZero() {
		return nil, invalidInput("workout start date is required")
	}
	startDate = calendar.Truncate(startDate)

	client, err := findClient(ctx, s.clientRepo, clientID)
	if err != nil {
		return nil, err
	}
	if err := checkUser(ctx, s.userRepo, trainerID); err != nil {
		return nil, err
	}

	days, err := s.assignments.workoutDays(ctx, client)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		log.Infof("client %s starts rotation without program workout days", clientID.Hex())
	}

	// a repeated start is refused here, before the start date is overwritten
	period, err := s.generator.Generate(ctx, clientID, trainerID, 1, startDate, days)
	if err != nil {
		if errors.Is(err, ErrAlreadyAdvanced) {
			return s.resumeStart(ctx, clientID, err)
		}
		return nil, err
	}

	if err := s.clientRepo.SetWorkoutStartDate(ctx, clientID, startDate); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("set workout start date: %w", err)
	}
	return period, nil
}

// resumeStart finishes a start whose week 1 was stored but whose start date
// was not. A client that already has a start date keeps the conflict.
func (s *rotationService) resumeStart(ctx context.Context, clientID primitive.ObjectID, conflict error) (*domain.WeekPeriod, error) {
	client, err := findClient(ctx, s.clientRepo, clientID)
	if err != nil {
		return nil, err
	}
	if client.WorkoutStartDate != nil {
		return nil, conflict
	}

	week1, err := s.findWeek(ctx, clientID, 1)
	if err != nil {
		return nil, err
	}
	if week1 == nil {
		return nil, conflict
	}
	if err := s.clientRepo.SetWorkoutStartDate(ctx, clientID, week1.WeekStartDate); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("set workout start date: %w", err)
	}
	log.WithField("client", clientID.Hex()).Warnf("week 1 found without a workout start date, start date set to %s",
		calendar.FormatDate(week1.WeekStartDate))
	return week1, nil
}

// SubmitDailyEntries validates everything before the first write: a missing
// client, user or period aborts with nothing stored and the period open. The
// entries and the close are stored as one unit, so a retry after a failed
// rollover only has the successor left to generate.
func (s *rotationService) SubmitDailyEntries(ctx context.Context, clientID, trainerID, periodID primitive.ObjectID, inputs []DailyEntryInput) (*SubmitResult, error) {
	kept, skipped, err := normalizeEntries(inputs)
	if err != nil {
		return nil, err
	}

	client, err := findClient(ctx, s.clientRepo, clientID)
	if err != nil {
		return nil, err
	}
	if err := checkUser(ctx, s.userRepo, trainerID); err != nil {
		return nil, err
	}
	period, err := s.periodRepo.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPeriodNotFound
		}
		return nil, fmt.Errorf("get week period: %w", err)
	}
	if period.ClientID != clientID {
		return nil, ErrPeriodNotFound
	}
	if period.Closed {
		return s.resumeRollover(ctx, client, trainerID, period)
	}

	logger := log.WithFields(log.Fields{
		"client":  clientID.Hex(),
		"period":  periodID.Hex(),
		"week_no": period.WeekNo,
	})
	if skipped > 0 {
		logger.Infof("skipping %d daily entries without workout type", skipped)
		s.metrics.CounterEntriesSkipped.Add(float64(skipped))
	}

	toStore := make([]*domain.DailyEntry, len(kept))
	for i, n := range kept {
		toStore[i] = n.toDomain(period, trainerID)
	}
	closedAt := time.Now().UTC()
	if err := s.periodRepo.Close(ctx, periodID, closedAt, toStore); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrPeriodClosed
		}
		return nil, fmt.Errorf("close week period: %w", err)
	}
	s.metrics.CounterEntriesStored.Add(float64(len(toStore)))
	period.Closed = true
	period.ClosedAt = &closedAt
	s.metrics.CounterPeriodsClosed.Inc()

	result := &SubmitResult{
		Period:  period,
		Entries: make([]domain.DailyEntry, len(toStore)),
		Skipped: skipped,
	}
	for i, e := range toStore {
		result.Entries[i] = *e
	}

	if client.WorkoutStartDate == nil {
		logger.Warn("client has no workout start date, next week not generated")
		return result, nil
	}

	next, err := s.generateNext(ctx, client, trainerID, period)
	if errors.Is(err, ErrAlreadyAdvanced) {
		// a retry against the closed period got there first
		next, err = s.findWeek(ctx, clientID, period.WeekNo+1)
		if err == nil && next == nil {
			err = ErrAlreadyAdvanced
		}
	}
	if err != nil {
		return nil, err
	}
	result.Next = next
	logger.Infof("week closed, week %d starts %s", next.WeekNo, calendar.FormatDate(next.WeekStartDate))

	return result, nil
}

// resumeRollover answers a submission against a closed period. When the
// period was closed but its successor never got stored, the successor is
// generated now and the period is returned without new entries: the entries
// of the earlier submission are already stored with it.
func (s *rotationService) resumeRollover(ctx context.Context, client *domain.Client, trainerID primitive.ObjectID, period *domain.WeekPeriod) (*SubmitResult, error) {
	if client.WorkoutStartDate == nil {
		return nil, ErrPeriodClosed
	}
	successor, err := s.findWeek(ctx, client.ID, period.WeekNo+1)
	if err != nil {
		return nil, err
	}
	if successor != nil {
		return nil, ErrPeriodClosed
	}

	next, err := s.generateNext(ctx, client, trainerID, period)
	if err != nil {
		if errors.Is(err, ErrAlreadyAdvanced) {
			return nil, ErrPeriodClosed
		}
		return nil, err
	}
	log.WithFields(log.Fields{
		"client":  client.ID.Hex(),
		"period":  period.ID.Hex(),
		"week_no": period.WeekNo,
	}).Warnf("closed week had no successor, week %d generated", next.WeekNo)

	return &SubmitResult{
		Period:  period,
		Entries: []domain.DailyEntry{},
		Next:    next,
	}, nil
}

// generateNext opens the week after period. Days are read again: the
// assignment may have changed since week 1.
func (s *rotationService) generateNext(ctx context.Context, client *domain.Client, trainerID primitive.ObjectID, period *domain.WeekPeriod) (*domain.WeekPeriod, error) {
	days, err := s.assignments.workoutDays(ctx, client)
	if err != nil {
		return nil, err
	}
	return s.generator.Generate(ctx, client.ID, trainerID, period.WeekNo+1, period.NextStartDate(), days)
}

// findWeek returns the client's period with the given number, nil if none.
func (s *rotationService) findWeek(ctx context.Context, clientID primitive.ObjectID, weekNo int) (*domain.WeekPeriod, error) {
	periods, err := s.periodRepo.ListByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list week periods: %w", err)
	}
	for i := range periods {
		if periods[i].WeekNo == weekNo {
			return &periods[i], nil
		}
	}
	return nil, nil
}

func (s *rotationService) ListPeriods(ctx context.Context, clientID primitive.ObjectID) ([]PeriodWithEntries, error) {
	if _, err := findClient(ctx, s.clientRepo, clientID); err != nil {
		return nil, err
	}

	periods, err := s.periodRepo.ListByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list week periods: %w", err)
	}
	if len(periods) == 0 {
		return []PeriodWithEntries{}, nil
	}

	ids := make([]primitive.ObjectID, len(periods))
	for i, p := range periods {
		ids[i] = p.ID
	}
	entries, err := s.entryRepo.ListByPeriodIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list daily entries: %w", err)
	}

	byPeriod := make(map[primitive.ObjectID][]domain.DailyEntry, len(periods))
	for _, e := range entries {
		byPeriod[e.PeriodID] = append(byPeriod[e.PeriodID], e)
	}

	out := make([]PeriodWithEntries, len(periods))
	for i, p := range periods {
		pe := byPeriod[p.ID]
		if pe == nil {
			pe = []domain.DailyEntry{}
		}
		out[i] = PeriodWithEntries{WeekPeriod: p, Entries: pe}
	}
	return out, nil
}
