package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"frontline/coaching-app/internal/calendar"
	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/repository"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStartRotation_FirstWeek(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client, period := f.startedClient(t, trainer)

	assert.Equal(t, 1, period.WeekNo)
	assert.Equal(t, client.ID, period.ClientID)
	assert.Equal(t, trainer.ID, period.TrainerID)
	assert.Equal(t, "2024-03-04", calendar.FormatDate(period.WeekStartDate))
	assert.Equal(t, "2024-03-09", calendar.FormatDate(period.WeekEndDate))
	assert.Equal(t, 3, period.TotalProgramDays)
	assert.Equal(t, 3, period.MatchedDayCount)
	assert.Equal(t, []string{"monday", "wednesday", "friday"}, period.MatchedDayNames)
	assert.Equal(t, []string{"2024-03-04", "2024-03-06", "2024-03-08"}, calendar.FormatDates(period.MatchedDates))
	assert.False(t, period.Closed)

	stored, err := f.store.Clients().GetByID(context.Background(), client.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.WorkoutStartDate)
	assert.Equal(t, "2024-03-04", calendar.FormatDate(*stored.WorkoutStartDate))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterPeriodsCreated))
}

func TestStartRotation_WithoutAssignment(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client := f.newClient(t)

	period, err := f.rotation.StartRotation(context.Background(), client.ID, trainer.ID, date("2024-03-07"))
	require.NoError(t, err)
	assert.Equal(t, 0, period.TotalProgramDays)
	assert.Equal(t, 0, period.MatchedDayCount)
	assert.Empty(t, period.MatchedDates)
	assert.Equal(t, "2024-03-09", calendar.FormatDate(period.WeekEndDate))
}

func TestStartRotation_Twice(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client, _ := f.startedClient(t, trainer)

	_, err := f.rotation.StartRotation(context.Background(), client.ID, trainer.ID, date("2024-03-11"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyAdvanced)
	assert.Equal(t, KindConflict, KindOf(err))

	periods, err := f.rotation.ListPeriods(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Len(t, periods, 1)

	stored, err := f.store.Clients().GetByID(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", calendar.FormatDate(*stored.WorkoutStartDate))
}

// flakyPeriods fails the first Create of the given week number.
type flakyPeriods struct {
	repository.WeekPeriodRepository
	failWeek int
	failed   bool
}

func (r *flakyPeriods) Create(ctx context.Context, period *domain.WeekPeriod) (primitive.ObjectID, error) {
	if period.WeekNo == r.failWeek && !r.failed {
		r.failed = true
		return primitive.NilObjectID, errors.New("transient write failure")
	}
	return r.WeekPeriodRepository.Create(ctx, period)
}

// flakyClients fails the first SetWorkoutStartDate.
type flakyClients struct {
	repository.ClientRepository
	failed bool
}

func (r *flakyClients) SetWorkoutStartDate(ctx context.Context, id primitive.ObjectID, start time.Time) error {
	if !r.failed {
		r.failed = true
		return errors.New("transient write failure")
	}
	return r.ClientRepository.SetWorkoutStartDate(ctx, id, start)
}

func TestStartRotation_RetryAfterStartDateFailure(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client := f.newClient(t)
	f.assign(t, client.ID, trainer.ID, "monday", "wednesday", "friday")
	ctx := context.Background()

	clients := &flakyClients{ClientRepository: f.store.Clients()}
	rotation := NewRotationService(clients, f.store.Users(), f.store.Assignments(), f.store.WeekPeriods(), f.store.DailyEntries(), f.metrics)

	_, err := rotation.StartRotation(ctx, client.ID, trainer.ID, date("2024-03-04"))
	require.Error(t, err)
	stored, err := f.store.Clients().GetByID(ctx, client.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.WorkoutStartDate)

	period, err := rotation.StartRotation(ctx, client.ID, trainer.ID, date("2024-03-04"))
	require.NoError(t, err)
	assert.Equal(t, 1, period.WeekNo)
	assert.Equal(t, "2024-03-04", calendar.FormatDate(period.WeekStartDate))

	stored, err = f.store.Clients().GetByID(ctx, client.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.WorkoutStartDate)
	assert.Equal(t, "2024-03-04", calendar.FormatDate(*stored.WorkoutStartDate))

	_, err = rotation.StartRotation(ctx, client.ID, trainer.ID, date("2024-03-04"))
	assert.ErrorIs(t, err, ErrAlreadyAdvanced)

	periods, err := rotation.ListPeriods(ctx, client.ID)
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}

func TestStartRotation_NotFound(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client := f.newClient(t)
	ctx := context.Background()

	_, err := f.rotation.StartRotation(ctx, primitive.NewObjectID(), trainer.ID, date("2024-03-04"))
	assert.ErrorIs(t, err, ErrClientNotFound)

	_, err = f.rotation.StartRotation(ctx, client.ID, primitive.NewObjectID(), date("2024-03-04"))
	assert.ErrorIs(t, err, ErrUserNotFound)

	stored, err := f.store.Clients().GetByID(ctx, client.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.WorkoutStartDate)
}

func TestSubmitDailyEntries_ClosesAndSpawnsNextWeek(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client, period := f.startedClient(t, trainer)

	res, err := f.rotation.SubmitDailyEntries(context.Background(), client.ID, trainer.ID, period.ID, []DailyEntryInput{
		{Day: intPtr(1), Date: "2024-03-04", WorkoutType: "Squat", Sets: intPtr(3), Reps: intPtr(12)},
		{Day: intPtr(2), Date: "2024-03-06", WorkoutType: "Bench press", Sets: intPtr(4), Reps: intPtr(8)},
	})
	require.NoError(t, err)

	assert.True(t, res.Period.Closed)
	assert.NotNil(t, res.Period.ClosedAt)
	assert.Len(t, res.Entries, 2)
	assert.Equal(t, 0, res.Skipped)

	require.NotNil(t, res.Next)
	assert.Equal(t, 2, res.Next.WeekNo)
	assert.Equal(t, "2024-03-10", calendar.FormatDate(res.Next.WeekStartDate))
	assert.Equal(t, "2024-03-16", calendar.FormatDate(res.Next.WeekEndDate))
	assert.Equal(t, []string{"2024-03-11", "2024-03-13", "2024-03-15"}, calendar.FormatDates(res.Next.MatchedDates))
	assert.Equal(t, trainer.ID, res.Next.TrainerID)
	assert.False(t, res.Next.Closed)

	periods, err := f.rotation.ListPeriods(context.Background(), client.ID)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, 2, periods[0].WeekNo)
	assert.Empty(t, periods[0].Entries)
	assert.Equal(t, 1, periods[1].WeekNo)
	assert.True(t, periods[1].Closed)
	require.Len(t, periods[1].Entries, 2)
	assert.Equal(t, "Squat", periods[1].Entries[0].WorkoutType)
	assert.Equal(t, 1, periods[1].Entries[0].WeekNo)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterPeriodsClosed))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CounterEntriesStored))
}

func TestSubmitDailyEntries_Defaults(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client, period := f.startedClient(t, trainer)

	res, err := f.rotation.SubmitDailyEntries(context.Background(), client.ID, trainer.ID, period.ID, []DailyEntryInput{
		{Date: "2024-03-08", WorkoutType: "  Plank  ", Sets: intPtr(0), Reps: intPtr(-2)},
	})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	e := res.Entries[0]
	assert.Equal(t, 1, e.DayNo)
	assert.Equal(t, 1, e.Sets)
	assert.Equal(t, 1, e.Reps)
	assert.Equal(t, "Plank", e.WorkoutType)
	assert.Equal(t, period.ID, e.PeriodID)
	assert.Equal(t, client.ID, e.ClientID)
}

func TestSubmitDailyEntries_SkipsBlankWorkoutType(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client, period := f.startedClient(t, trainer)

	res, err := f.rotation.SubmitDailyEntries(context.Background(), client.ID, trainer.ID, period.ID, []DailyEntryInput{
		{Day: intPtr(1), Date: "2024-03-04", WorkoutType: "Deadlift"},
		{Day: intPtr(1), Date: "2024-03-04", WorkoutType: "   "},
		{Day: intPtr(2), Date: "not a date", WorkoutType: ""},
	})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 1)
	assert.Equal(t, 2, res.Skipped)
	assert.True(t, res.Period.Closed)
	assert.NotNil(t, res.Next)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CounterEntriesSkipped))
}

func TestSubmitDailyEntries_AllSkippedStillCloses(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client, period := f.startedClient(t, trainer)

	res, err := f.rotation.SubmitDailyEntries(context.Background(), client.ID, trainer.ID, period.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.True(t, res.Period.Closed)
	require.NotNil(t, res.Next)
	assert.Equal(t, 2, res.Next.WeekNo)
}

func TestSubmitDailyEntries_MalformedDate(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client, period := f.startedClient(t, trainer)

	_, err := f.rotation.SubmitDailyEntries(context.Background(), client.ID, trainer.ID, period.ID, []DailyEntryInput{
		{Date: "2024-03-04", WorkoutType: "Row"},
		{Date: "04/03/2024", WorkoutType: "Lunge"},
	})
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	assert.Zero(t, f.entryCount(t, period.ID))
	stored, err := f.store.WeekPeriods().GetByID(context.Background(), period.ID)
	require.NoError(t, err)
	assert.False(t, stored.Closed)
}

func TestSubmitDailyEntries_NotFoundLeavesNoWrites(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client, period := f.startedClient(t, trainer)
	other := f.newClient(t)
	ctx := context.Background()
	entries := []DailyEntryInput{{Date: "2024-03-04", WorkoutType: "Squat"}}

	tests := []struct {
		name      string
		clientID  primitive.ObjectID
		trainerID primitive.ObjectID
		periodID  primitive.ObjectID
		want      error
	}{
		{"unknown client", primitive.NewObjectID(), trainer.ID, period.ID, ErrClientNotFound},
		{"unknown trainer", client.ID, primitive.NewObjectID(), period.ID, ErrUserNotFound},
		{"unknown period", client.ID, trainer.ID, primitive.NewObjectID(), ErrPeriodNotFound},
		{"period of another client", other.ID, trainer.ID, period.ID, ErrPeriodNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.rotation.SubmitDailyEntries(ctx, tt.clientID, tt.trainerID, tt.periodID, entries)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindNotFound, KindOf(err))
		})
	}

	assert.Zero(t, f.entryCount(t, period.ID))
	periods, err := f.rotation.ListPeriods(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.False(t, periods[0].Closed)
}

func TestSubmitDailyEntries_ClosedPeriod(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client, period := f.startedClient(t, trainer)
	ctx := context.Background()
	entries := []DailyEntryInput{{Date: "2024-03-04", WorkoutType: "Squat"}}

	_, err := f.rotation.SubmitDailyEntries(ctx, client.ID, trainer.ID, period.ID, entries)
	require.NoError(t, err)

	_, err = f.rotation.SubmitDailyEntries(ctx, client.ID, trainer.ID, period.ID, entries)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPeriodClosed)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, 1, f.entryCount(t, period.ID))

	periods, err := f.rotation.ListPeriods(ctx, client.ID)
	require.NoError(t, err)
	assert.Len(t, periods, 2)
}

func TestSubmitDailyEntries_RetryAfterRolloverFailure(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client := f.newClient(t)
	f.assign(t, client.ID, trainer.ID, "monday", "wednesday", "friday")
	ctx := context.Background()

	periods := &flakyPeriods{WeekPeriodRepository: f.store.WeekPeriods(), failWeek: 2}
	rotation := NewRotationService(f.store.Clients(), f.store.Users(), f.store.Assignments(), periods, f.store.DailyEntries(), f.metrics)

	period, err := rotation.StartRotation(ctx, client.ID, trainer.ID, date("2024-03-04"))
	require.NoError(t, err)
	entries := []DailyEntryInput{{Date: "2024-03-04", WorkoutType: "Squat"}}

	_, err = rotation.SubmitDailyEntries(ctx, client.ID, trainer.ID, period.ID, entries)
	require.Error(t, err)
	assert.NotEqual(t, KindConflict, KindOf(err))
	stored, err := f.store.WeekPeriods().GetByID(ctx, period.ID)
	require.NoError(t, err)
	assert.True(t, stored.Closed)
	assert.Equal(t, 1, f.entryCount(t, period.ID))

	res, err := rotation.SubmitDailyEntries(ctx, client.ID, trainer.ID, period.ID, entries)
	require.NoError(t, err)
	assert.True(t, res.Period.Closed)
	assert.Empty(t, res.Entries)
	require.NotNil(t, res.Next)
	assert.Equal(t, 2, res.Next.WeekNo)
	assert.Equal(t, "2024-03-10", calendar.FormatDate(res.Next.WeekStartDate))
	assert.Equal(t, 1, f.entryCount(t, period.ID))

	_, err = rotation.SubmitDailyEntries(ctx, client.ID, trainer.ID, period.ID, entries)
	assert.ErrorIs(t, err, ErrPeriodClosed)

	list, err := rotation.ListPeriods(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].WeekNo)
	assert.Len(t, list[1].Entries, 1)
}

func TestSubmitDailyEntries_WithoutStartDate(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client := f.newClient(t)
	ctx := context.Background()

	gen := NewPeriodGenerator(f.store.WeekPeriods(), f.metrics)
	period, err := gen.Generate(ctx, client.ID, trainer.ID, 1, date("2024-03-04"), []string{"monday"})
	require.NoError(t, err)

	res, err := f.rotation.SubmitDailyEntries(ctx, client.ID, trainer.ID, period.ID, []DailyEntryInput{
		{Date: "2024-03-04", WorkoutType: "Squat"},
	})
	require.NoError(t, err)
	assert.True(t, res.Period.Closed)
	assert.Nil(t, res.Next)

	periods, err := f.rotation.ListPeriods(ctx, client.ID)
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}

func TestSubmitDailyEntries_NextWeekUsesCurrentAssignment(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client, period := f.startedClient(t, trainer)

	f.assign(t, client.ID, trainer.ID, "tuesday", "thursday")

	res, err := f.rotation.SubmitDailyEntries(context.Background(), client.ID, trainer.ID, period.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Next)
	assert.Equal(t, 2, res.Next.TotalProgramDays)
	assert.Equal(t, []string{"tuesday", "thursday"}, res.Next.MatchedDayNames)
	assert.Equal(t, []string{"2024-03-12", "2024-03-14"}, calendar.FormatDates(res.Next.MatchedDates))
}

func TestSubmitDailyEntries_ConcurrentCloseHasOneWinner(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	client, period := f.startedClient(t, trainer)
	ctx := context.Background()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		closers int
		others  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.rotation.SubmitDailyEntries(ctx, client.ID, trainer.ID, period.ID, []DailyEntryInput{
				{Date: "2024-03-04", WorkoutType: "Squat"},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && len(res.Entries) == 1:
				closers++
			case err == nil:
				// raced the closer to the successor, nothing of its own stored
				assert.Empty(t, res.Entries)
				others++
			case KindOf(err) == KindConflict:
				others++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, closers)
	assert.Equal(t, workers-1, others)
	assert.Equal(t, 1, f.entryCount(t, period.ID))

	periods, err := f.rotation.ListPeriods(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, 2, periods[0].WeekNo)
}

func TestListPeriods(t *testing.T) {
	f := newFixture(t)
	trainer := f.newUser(t, domain.RoleTrainer)
	ctx := context.Background()

	_, err := f.rotation.ListPeriods(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrClientNotFound)

	client := f.newClient(t)
	periods, err := f.rotation.ListPeriods(ctx, client.ID)
	require.NoError(t, err)
	assert.NotNil(t, periods)
	assert.Empty(t, periods)

	client, period := f.startedClient(t, trainer)
	for week := 1; week <= 3; week++ {
		res, err := f.rotation.SubmitDailyEntries(ctx, client.ID, trainer.ID, period.ID, []DailyEntryInput{
			{Day: intPtr(2), Date: calendar.FormatDate(period.WeekStartDate.AddDate(0, 0, 2)), WorkoutType: "Row"},
			{Day: intPtr(1), Date: calendar.FormatDate(period.WeekStartDate), WorkoutType: "Squat"},
		})
		require.NoError(t, err)
		period = res.Next
	}

	periods, err = f.rotation.ListPeriods(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, periods, 4)
	for i, p := range periods {
		assert.Equal(t, 4-i, p.WeekNo)
	}
	require.Len(t, periods[1].Entries, 2)
	assert.Equal(t, 1, periods[1].Entries[0].DayNo)
	assert.Equal(t, 2, periods[1].Entries[1].DayNo)
	assert.Equal(t, "2024-03-24", calendar.FormatDate(periods[0].WeekStartDate))
}
