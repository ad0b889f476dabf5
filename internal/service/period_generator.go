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

// BuildPeriod computes an unsaved period starting at start: it ends on the
// Saturday on or after start and lists the dates in that range whose weekday
// is one of workoutDays. An empty workoutDays is valid and yields no matches.
func BuildPeriod(clientID, trainerID primitive.ObjectID, weekNo int, start time.Time, workoutDays []string) domain.WeekPeriod {
	start = calendar.Truncate(start)
	end := calendar.EndOfWeek(start)
	dates, names := calendar.MatchingDays(calendar.DateRange(start, end), workoutDays)

	return domain.WeekPeriod{
		ClientID:         clientID,
		TrainerID:        trainerID,
		WeekNo:           weekNo,
		WeekStartDate:    start,
		WeekEndDate:      end,
		TotalProgramDays: len(workoutDays),
		MatchedDayCount:  len(dates),
		MatchedDayNames:  names,
		MatchedDates:     dates,
		Closed:           false,
	}
}

// PeriodGenerator persists freshly computed periods.
type PeriodGenerator struct {
	periods repository.WeekPeriodRepository
	metrics *metrics.Manager
}

func NewPeriodGenerator(periods repository.WeekPeriodRepository, metricsManager *metrics.Manager) *PeriodGenerator {
	return &PeriodGenerator{
		periods: periods,
		metrics: metricsManager,
	}
}

// Generate builds and stores one open period. It does not check for earlier
// periods; a second period with the same week number for the client is
// refused by storage and reported as ErrAlreadyAdvanced.
func (g *PeriodGenerator) Generate(ctx context.Context, clientID, trainerID primitive.ObjectID, weekNo int, start time.Time, workoutDays []string) (*domain.WeekPeriod, error) {
	if weekNo < 1 {
		return nil, invalidInput("week number must be positive, got %d", weekNo)
	}
	if start.IsZero() {
		return nil, invalidInput("period start date is required")
	}

	period := BuildPeriod(clientID, trainerID, weekNo, start, workoutDays)
	id, err := g.periods.Create(ctx, &period)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &Error{Kind: ErrAlreadyAdvanced.Kind, Message: ErrAlreadyAdvanced.Message, Err: err}
		}
		return nil, fmt.Errorf("create week period %d: %w", weekNo, err)
	}
	period.ID = id
	g.metrics.CounterPeriodsCreated.Inc()

	log.WithFields(log.Fields{
		"client":  clientID.Hex(),
		"week_no": weekNo,
		"start":   calendar.FormatDate(period.WeekStartDate),
		"end":     calendar.FormatDate(period.WeekEndDate),
		"matched": period.MatchedDayCount,
	}).Debug("week period generated")

	return &period, nil
}
