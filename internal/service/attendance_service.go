package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"
	"strconv"
	"time"

	"frontline/coaching-app/internal/calendar"
	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/metrics"
	"frontline/coaching-app/internal/repository"
	"frontline/coaching-app/internal/storage"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DisplayTimeLayout is how timestamps are shown to trainers.
const DisplayTimeLayout = "2006-01-02 15:04:05"

// MarkResult reports whether a new attendance record was stored. A repeated
// mark returns the existing record with Created false.
type MarkResult struct {
	Created bool
	Record  domain.AttendanceRecord
}

// AttendanceDue is an assignment scheduled on the requested date.
type AttendanceDue struct {
	Assignment    domain.ProgramAssignment
	Client        domain.Client
	HasAttendance bool
}

// ReportDay is one scheduled workout day of a monthly report.
type ReportDay struct {
	Date       time.Time
	Attended   bool
	Attendance *domain.AttendanceRecord
}

type MonthlyReport struct {
	ClientID    primitive.ObjectID
	Year        int
	Month       time.Month
	StartDate   time.Time
	WorkoutDays []string
	Days        []ReportDay
}

// ReportExport is an uploaded monthly report.
type ReportExport struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

type AttendanceService interface {
	MarkAttendance(ctx context.Context, clientID, trainerID primitive.ObjectID, date time.Time) (*MarkResult, error)
	// ListAttendanceForDate returns the trainer's active assignments that
	// have a workout on date. A zero date means today.
	ListAttendanceForDate(ctx context.Context, trainerID primitive.ObjectID, date time.Time) ([]AttendanceDue, error)
	MonthlyReport(ctx context.Context, clientID primitive.ObjectID, year int, month time.Month) (*MonthlyReport, error)
	ExportMonthlyReport(ctx context.Context, clientID primitive.ObjectID, year int, month time.Month) (*ReportExport, error)
}

// AttendanceOptions carries the calendar and export settings.
type AttendanceOptions struct {
	Location     *time.Location
	ReportPrefix string
	URLExpiry    time.Duration
}

type attendanceService struct {
	clientRepo     repository.ClientRepository
	userRepo       repository.UserRepository
	assignmentRepo repository.ProgramAssignmentRepository
	attendanceRepo repository.AttendanceRepository
	assignments    assignmentLookup
	reports        storage.ReportStorage
	opts           AttendanceOptions
	metrics        *metrics.Manager
}

// NewAttendanceService creates a new instance of attendanceService. reports
// may be nil, which disables ExportMonthlyReport.
func NewAttendanceService(
	clientRepo repository.ClientRepository,
	userRepo repository.UserRepository,
	assignmentRepo repository.ProgramAssignmentRepository,
	attendanceRepo repository.AttendanceRepository,
	reports storage.ReportStorage,
	opts AttendanceOptions,
	metricsManager *metrics.Manager,
) AttendanceService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = storage.DefaultPresignedURLExpiry
	}
	return &attendanceService{
		clientRepo:     clientRepo,
		userRepo:       userRepo,
		assignmentRepo: assignmentRepo,
		attendanceRepo: attendanceRepo,
		assignments:    assignmentLookup{assignments: assignmentRepo},
		reports:        reports,
		opts:           opts,
		metrics:        metricsManager,
	}
}

func (s *attendanceService) MarkAttendance(ctx context.Context, clientID, trainerID primitive.ObjectID, date time.Time) (*MarkResult, error) {
	if date.IsZero() {
		date = calendar.Today(s.opts.Location)
	}
	date = calendar.Truncate(date)

	if _, err := findClient(ctx, s.clientRepo, clientID); err != nil {
		return nil, err
	}
	if err := checkUser(ctx, s.userRepo, trainerID); err != nil {
		return nil, err
	}

	record := &domain.AttendanceRecord{
		ClientID:    clientID,
		TrainerID:   trainerID,
		WorkoutDate: date,
		Status:      true,
	}
	created, err := s.attendanceRepo.CreateIfAbsent(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("mark attendance: %w", err)
	}

	result := "created"
	if !created {
		result = "duplicate"
		log.WithFields(log.Fields{
			"client": clientID.Hex(),
			"date":   calendar.FormatDate(date),
		}).Debug("attendance already marked")
	}
	s.metrics.CounterAttendanceMarks.WithLabelValues(result).Inc()

	return &MarkResult{Created: created, Record: *record}, nil
}

func (s *attendanceService) ListAttendanceForDate(ctx context.Context, trainerID primitive.ObjectID, date time.Time) ([]AttendanceDue, error) {
	if date.IsZero() {
		date = calendar.Today(s.opts.Location)
	}
	date = calendar.Truncate(date)

	assignments, err := s.assignmentRepo.GetActiveByTrainerID(ctx, trainerID)
	if err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}

	scheduled := make([]domain.ProgramAssignment, 0, len(assignments))
	clientIDs := make([]primitive.ObjectID, 0, len(assignments))
	for _, a := range assignments {
		if calendar.ContainsDay(a.WorkoutDays, date) {
			scheduled = append(scheduled, a)
			clientIDs = append(clientIDs, a.ClientID)
		}
	}
	if len(scheduled) == 0 {
		return []AttendanceDue{}, nil
	}

	clients, err := s.clientRepo.GetByIDs(ctx, clientIDs)
	if err != nil {
		return nil, fmt.Errorf("get clients: %w", err)
	}
	clientsByID := make(map[primitive.ObjectID]domain.Client, len(clients))
	for _, c := range clients {
		clientsByID[c.ID] = c
	}

	records, err := s.attendanceRepo.ListByTrainerAndDate(ctx, trainerID, date)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	attended := make(map[primitive.ObjectID]bool, len(records))
	for _, r := range records {
		attended[r.ClientID] = true
	}

	out := make([]AttendanceDue, 0, len(scheduled))
	for _, a := range scheduled {
		client, ok := clientsByID[a.ClientID]
		if !ok || !client.HasStarted(date) {
			continue
		}
		// stale assignments of a reassigned client are skipped
		if client.ActiveAssignment == nil || *client.ActiveAssignment != a.ID {
			continue
		}
		out = append(out, AttendanceDue{
			Assignment:    a,
			Client:        client,
			HasAttendance: attended[a.ClientID],
		})
	}
	return out, nil
}

func (s *attendanceService) MonthlyReport(ctx context.Context, clientID primitive.ObjectID, year int, month time.Month) (*MonthlyReport, error) {
	if month < time.January || month > time.December {
		return nil, invalidInput("month must be between 1 and 12, got %d", month)
	}
	if year < 1970 || year > 9999 {
		return nil, invalidInput("invalid year %d", year)
	}

	client, err := findClient(ctx, s.clientRepo, clientID)
	if err != nil {
		return nil, err
	}
	if client.WorkoutStartDate == nil {
		return nil, ErrRotationNotStarted
	}
	assignment, err := s.assignments.active(ctx, client)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrNoActiveAssignment
	}

	start := calendar.Truncate(*client.WorkoutStartDate)
	monthDays := calendar.DaysInMonth(year, month)
	records, err := s.attendanceRepo.ListByClientBetween(ctx, clientID, monthDays[0], monthDays[len(monthDays)-1])
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	byDate := make(map[int64]domain.AttendanceRecord, len(records))
	for _, r := range records {
		byDate[r.WorkoutDate.Unix()] = r
	}

	report := &MonthlyReport{
		ClientID:    clientID,
		Year:        year,
		Month:       month,
		StartDate:   start,
		WorkoutDays: assignment.WorkoutDays,
		Days:        []ReportDay{},
	}
	for _, day := range monthDays {
		if day.Before(start) || !calendar.ContainsDay(assignment.WorkoutDays, day) {
			continue
		}
		rd := ReportDay{Date: day}
		if r, ok := byDate[day.Unix()]; ok {
			rd.Attended = r.Status
			rd.Attendance = &r
		}
		report.Days = append(report.Days, rd)
	}
	return report, nil
}

func (s *attendanceService) ExportMonthlyReport(ctx context.Context, clientID primitive.ObjectID, year int, month time.Month) (*ReportExport, error) {
	if s.reports == nil {
		return nil, ErrExportDisabled
	}
	report, err := s.MonthlyReport(ctx, clientID, year, month)
	if err != nil {
		return nil, err
	}

	body, err := renderReportCSV(report, s.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	key := path.Join(s.opts.ReportPrefix, clientID.Hex(), fmt.Sprintf("%04d-%02d", year, int(month)), uuid.NewString()+".csv")
	if err := s.reports.PutObject(ctx, key, "text/csv", bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}
	url, err := s.reports.GeneratePresignedDownloadURL(ctx, key, s.opts.URLExpiry)
	if err != nil {
		// nobody can fetch the object without a URL
		if derr := s.reports.DeleteObject(ctx, key); derr != nil {
			log.Warnf("delete unreachable report %s: %v", key, derr)
		}
		return nil, fmt.Errorf("presign report: %w", err)
	}
	s.metrics.CounterReportExports.Inc()

	log.WithFields(log.Fields{
		"client": clientID.Hex(),
		"key":    key,
		"days":   len(report.Days),
	}).Info("monthly attendance report exported")

	return &ReportExport{
		Key:       key,
		URL:       url,
		ExpiresAt: time.Now().Add(s.opts.URLExpiry).UTC(),
	}, nil
}

func renderReportCSV(report *MonthlyReport, loc *time.Location) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{"date", "weekday", "attended", "marked_at", "trainer_id"}}
	for _, d := range report.Days {
		markedAt, trainer := "", ""
		if d.Attendance != nil {
			markedAt = d.Attendance.CreatedAt.In(loc).Format(DisplayTimeLayout)
			trainer = d.Attendance.TrainerID.Hex()
		}
		rows = append(rows, []string{
			calendar.FormatDate(d.Date),
			calendar.WeekdayName(d.Date),
			strconv.FormatBool(d.Attended),
			markedAt,
			trainer,
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
