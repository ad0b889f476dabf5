package service

import (
	"strings"
	"time"

	"frontline/coaching-app/internal/calendar"
	"frontline/coaching-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DailyEntryInput is one submitted exercise line. Pointer fields may be
// absent; absent or non-positive values default to 1.
type DailyEntryInput struct {
	Day         *int
	Date        string
	WorkoutType string
	Sets        *int
	Reps        *int
}

// normalizedEntry is a kept input with its defaults applied.
type normalizedEntry struct {
	dayNo       int
	workoutDate time.Time
	workoutType string
	sets        int
	reps        int
}

// normalizeEntries drops inputs without a workout type and applies defaults
// to the rest. A malformed date on a kept entry rejects the whole batch.
func normalizeEntries(inputs []DailyEntryInput) (kept []normalizedEntry, skipped int, err error) {
	kept = make([]normalizedEntry, 0, len(inputs))
	for i, in := range inputs {
		workoutType := strings.TrimSpace(in.WorkoutType)
		if workoutType == "" {
			skipped++
			continue
		}
		date, perr := calendar.ParseDate(in.Date)
		if perr != nil {
			return nil, 0, invalidInput("entry %d: %v", i+1, perr)
		}
		kept = append(kept, normalizedEntry{
			dayNo:       positiveOrOne(in.Day),
			workoutDate: date,
			workoutType: workoutType,
			sets:        positiveOrOne(in.Sets),
			reps:        positiveOrOne(in.Reps),
		})
	}
	return kept, skipped, nil
}

func (n normalizedEntry) toDomain(period *domain.WeekPeriod, trainerID primitive.ObjectID) *domain.DailyEntry {
	return &domain.DailyEntry{
		PeriodID:    period.ID,
		ClientID:    period.ClientID,
		TrainerID:   trainerID,
		WeekNo:      period.WeekNo,
		DayNo:       n.dayNo,
		WorkoutDate: n.workoutDate,
		WorkoutType: n.workoutType,
		Sets:        n.sets,
		Reps:        n.reps,
	}
}

func positiveOrOne(v *int) int {
	if v == nil || *v < 1 {
		return 1
	}
	return *v
}
