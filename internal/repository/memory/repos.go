package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- users ---

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email and role are required")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return user.ID, nil
}

func (r *userRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// --- clients ---

type clientRepo struct{ s *Store }

func (r *clientRepo) Create(_ context.Context, client *domain.Client) (primitive.ObjectID, error) {
	if client.Email == "" {
		return primitive.NilObjectID, errors.New("client email is required")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.clients {
		if c.Email == client.Email {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	client.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	client.CreatedAt, client.UpdatedAt = now, now
	if client.ConsultationStage == "" {
		client.ConsultationStage = domain.StagePending
	}
	r.s.clients[client.ID] = *client
	return client.ID, nil
}

func (r *clientRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *clientRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []domain.Client{}
	for _, id := range ids {
		if c, ok := r.s.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *clientRepo) SetWorkoutStartDate(_ context.Context, id primitive.ObjectID, start time.Time) error {
	return r.update(id, func(c *domain.Client) {
		c.WorkoutStartDate = &start
	})
}

func (r *clientRepo) UpdateConsultationStage(_ context.Context, id primitive.ObjectID, stage domain.ConsultationStage, newClient *bool) error {
	return r.update(id, func(c *domain.Client) {
		c.ConsultationStage = stage
		if newClient != nil {
			c.NewClient = *newClient
		}
	})
}

func (r *clientRepo) update(id primitive.ObjectID, fn func(c *domain.Client)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&c)
	c.UpdatedAt = time.Now().UTC()
	r.s.clients[id] = c
	return nil
}

// --- program assignments ---

type assignmentRepo struct{ s *Store }

func (r *assignmentRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.ProgramAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.assignments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *assignmentRepo) GetActiveByTrainerID(_ context.Context, trainerID primitive.ObjectID) ([]domain.ProgramAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []domain.ProgramAssignment{}
	for _, a := range r.s.assignments {
		if a.TrainerID == trainerID && a.IsActive() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (r *assignmentRepo) Reassign(_ context.Context, assignment *domain.ProgramAssignment) (primitive.ObjectID, error) {
	if assignment.ClientID == primitive.NilObjectID || assignment.ProgramID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("assignment requires clientId and programId")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	client, ok := r.s.clients[assignment.ClientID]
	if !ok {
		return primitive.NilObjectID, repository.ErrNotFound
	}

	now := time.Now().UTC()
	if client.ActiveAssignment != nil {
		if prev, ok := r.s.assignments[*client.ActiveAssignment]; ok {
			prev.Status = domain.AssignmentInactive
			prev.UpdatedAt = now
			r.s.assignments[prev.ID] = prev
		}
	}

	assignment.ID = primitive.NewObjectID()
	assignment.Status = domain.AssignmentActive
	assignment.AssignedAt = now
	assignment.UpdatedAt = now
	r.s.assignments[assignment.ID] = *assignment

	id := assignment.ID
	client.ActiveAssignment = &id
	client.UpdatedAt = now
	r.s.clients[client.ID] = client
	return assignment.ID, nil
}

// --- week periods ---

type weekPeriodRepo struct{ s *Store }

func (r *weekPeriodRepo) Create(_ context.Context, period *domain.WeekPeriod) (primitive.ObjectID, error) {
	if period.ClientID == primitive.NilObjectID || period.TrainerID == primitive.NilObjectID || period.WeekNo < 1 {
		return primitive.NilObjectID, errors.New("period requires clientId, trainerId and a positive weekNo")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.periods {
		if p.ClientID == period.ClientID && p.WeekNo == period.WeekNo {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	period.ID = primitive.NewObjectID()
	period.CreatedAt = time.Now().UTC()
	r.s.periods[period.ID] = copyPeriod(*period)
	return period.ID, nil
}

func (r *weekPeriodRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.WeekPeriod, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.periods[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = copyPeriod(p)
	return &p, nil
}

func (r *weekPeriodRepo) ListByClientID(_ context.Context, clientID primitive.ObjectID) ([]domain.WeekPeriod, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []domain.WeekPeriod{}
	for _, p := range r.s.periods {
		if p.ClientID == clientID {
			out = append(out, copyPeriod(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WeekNo != out[j].WeekNo {
			return out[i].WeekNo > out[j].WeekNo
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *weekPeriodRepo) Close(_ context.Context, id primitive.ObjectID, closedAt time.Time, entries []*domain.DailyEntry) error {
	for _, e := range entries {
		if e.PeriodID != id || e.WorkoutType == "" {
			return errors.New("daily entry requires the closing periodId and a workoutType")
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.periods[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Closed {
		return repository.ErrConflict
	}

	now := time.Now().UTC()
	for _, e := range entries {
		e.ID = primitive.NewObjectID()
		e.CreatedAt = now
		r.s.entries = append(r.s.entries, *e)
	}
	p.Closed = true
	p.ClosedAt = &closedAt
	r.s.periods[id] = p
	return nil
}

func copyPeriod(p domain.WeekPeriod) domain.WeekPeriod {
	p.MatchedDayNames = append([]string(nil), p.MatchedDayNames...)
	p.MatchedDates = append([]time.Time(nil), p.MatchedDates...)
	return p
}

// --- daily entries ---

type dailyEntryRepo struct{ s *Store }

func (r *dailyEntryRepo) ListByPeriodIDs(_ context.Context, periodIDs []primitive.ObjectID) ([]domain.DailyEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	wanted := make(map[primitive.ObjectID]struct{}, len(periodIDs))
	for _, id := range periodIDs {
		wanted[id] = struct{}{}
	}
	out := []domain.DailyEntry{}
	for _, e := range r.s.entries {
		if _, ok := wanted[e.PeriodID]; ok {
			out = append(out, e)
		}
	}
	// entries are appended in insertion order, a stable sort keeps it per day
	sort.SliceStable(out, func(i, j int) bool { return out[i].DayNo < out[j].DayNo })
	return out, nil
}

// --- attendance ---

type attendanceRepo struct{ s *Store }

func (r *attendanceRepo) CreateIfAbsent(_ context.Context, record *domain.AttendanceRecord) (bool, error) {
	if record.ClientID == primitive.NilObjectID || record.WorkoutDate.IsZero() {
		return false, errors.New("attendance requires clientId and workoutDate")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := attendanceKey{clientID: record.ClientID, date: record.WorkoutDate.Unix()}
	if existing, ok := r.s.attendance[key]; ok {
		*record = existing
		return false, nil
	}
	record.ID = primitive.NewObjectID()
	record.CreatedAt = time.Now().UTC()
	r.s.attendance[key] = *record
	return true, nil
}

func (r *attendanceRepo) ListByClientBetween(_ context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.AttendanceRecord, error) {
	return r.filter(func(a domain.AttendanceRecord) bool {
		return a.ClientID == clientID && !a.WorkoutDate.Before(from) && !a.WorkoutDate.After(to)
	}), nil
}

func (r *attendanceRepo) ListByTrainerAndDate(_ context.Context, trainerID primitive.ObjectID, date time.Time) ([]domain.AttendanceRecord, error) {
	return r.filter(func(a domain.AttendanceRecord) bool {
		return a.TrainerID == trainerID && a.WorkoutDate.Equal(date)
	}), nil
}

func (r *attendanceRepo) filter(keep func(a domain.AttendanceRecord) bool) []domain.AttendanceRecord {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []domain.AttendanceRecord{}
	for _, a := range r.s.attendance {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkoutDate.Before(out[j].WorkoutDate) })
	return out
}

// --- consultations ---

type consultationRepo struct{ s *Store }

func (r *consultationRepo) Create(_ context.Context, consultation *domain.Consultation) (primitive.ObjectID, error) {
	if consultation.ClientID == primitive.NilObjectID || consultation.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("consultation requires clientId and userId")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	consultation.ID = primitive.NewObjectID()
	consultation.CreatedAt = time.Now().UTC()
	r.s.consultations[consultation.ID] = *consultation
	return consultation.ID, nil
}

func (r *consultationRepo) ListOpenByClientAndUser(_ context.Context, clientID, userID primitive.ObjectID) ([]domain.Consultation, error) {
	return r.open(func(c domain.Consultation) bool {
		return c.ClientID == clientID && c.UserID == userID
	}), nil
}

func (r *consultationRepo) ListOpenByUser(_ context.Context, userID primitive.ObjectID) ([]domain.Consultation, error) {
	return r.open(func(c domain.Consultation) bool { return c.UserID == userID }), nil
}

func (r *consultationRepo) MarkDone(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.consultations[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Done = true
	r.s.consultations[id] = c
	return nil
}

func (r *consultationRepo) CreateIntake(_ context.Context, intake *domain.TrainerIntake) (primitive.ObjectID, error) {
	if intake.ClientID == primitive.NilObjectID || intake.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("trainer intake requires clientId and userId")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	intake.ID = primitive.NewObjectID()
	intake.CreatedAt = time.Now().UTC()
	r.s.intakes = append(r.s.intakes, *intake)
	return intake.ID, nil
}

func (r *consultationRepo) open(keep func(c domain.Consultation) bool) []domain.Consultation {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []domain.Consultation{}
	for _, c := range r.s.consultations {
		if !c.Done && keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.After(out[j].ScheduledAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
