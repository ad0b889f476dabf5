package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"frontline/coaching-app/internal/calendar"
	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/service"
)

// flexInt accepts a JSON number or a numeric string. Anything unparsable,
// fractional or outside the int32 range decodes to 0, which the entry store
// treats as absent.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = 0
			return nil
		}
		n = json.Number(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(n), 64)
	if err != nil || v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}

func (f *flexInt) intPtr() *int {
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

// displayTime renders a timestamp the way trainers see it.
func displayTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(service.DisplayTimeLayout)
}

// --- Rotation ---

type StartRotationRequest struct {
	WorkoutStartDate string `json:"workoutStartDate" binding:"required"`
}

type DailyEntryRequest struct {
	Day         *flexInt `json:"day"`
	Date        string   `json:"date"`
	WorkoutType string   `json:"workoutType"`
	Sets        *flexInt `json:"sets"`
	Reps        *flexInt `json:"reps"`
}

type SubmitEntriesRequest struct {
	Entries []DailyEntryRequest `json:"entries"`
}

func (r SubmitEntriesRequest) toInputs() []service.DailyEntryInput {
	inputs := make([]service.DailyEntryInput, len(r.Entries))
	for i, e := range r.Entries {
		inputs[i] = service.DailyEntryInput{
			Day:         e.Day.intPtr(),
			Date:        e.Date,
			WorkoutType: e.WorkoutType,
			Sets:        e.Sets.intPtr(),
			Reps:        e.Reps.intPtr(),
		}
	}
	return inputs
}

type WeekPeriodResponse struct {
	ID               string   `json:"id"`
	ClientID         string   `json:"clientId"`
	TrainerID        string   `json:"trainerId"`
	WeekNo           int      `json:"weekNo"`
	WeekStartDate    string   `json:"weekStartDate"`
	WeekEndDate      string   `json:"weekEndDate"`
	TotalProgramDays int      `json:"totalProgramDays"`
	MatchedDayCount  int      `json:"matchedDayCount"`
	MatchedDayNames  []string `json:"matchedDayNames"`
	MatchedDates     []string `json:"matchedDates"`
	Closed           bool     `json:"closed"`
	ClosedAt         string   `json:"closedAt,omitempty"`
}

func MapWeekPeriodToResponse(p *domain.WeekPeriod, loc *time.Location) *WeekPeriodResponse {
	if p == nil {
		return nil
	}
	names := p.MatchedDayNames
	if names == nil {
		names = []string{}
	}
	resp := &WeekPeriodResponse{
		ID:               p.ID.Hex(),
		ClientID:         p.ClientID.Hex(),
		TrainerID:        p.TrainerID.Hex(),
		WeekNo:           p.WeekNo,
		WeekStartDate:    calendar.FormatDate(p.WeekStartDate),
		WeekEndDate:      calendar.FormatDate(p.WeekEndDate),
		TotalProgramDays: p.TotalProgramDays,
		MatchedDayCount:  p.MatchedDayCount,
		MatchedDayNames:  names,
		MatchedDates:     calendar.FormatDates(p.MatchedDates),
		Closed:           p.Closed,
	}
	if p.ClosedAt != nil {
		resp.ClosedAt = displayTime(*p.ClosedAt, loc)
	}
	return resp
}

type DailyEntryResponse struct {
	ID          string `json:"id"`
	PeriodID    string `json:"periodId"`
	TrainerID   string `json:"trainerId"`
	WeekNo      int    `json:"weekNo"`
	DayNo       int    `json:"dayNo"`
	WorkoutDate string `json:"workoutDate"`
	WorkoutType string `json:"workoutType"`
	Sets        int    `json:"sets"`
	Reps        int    `json:"reps"`
}

func MapDailyEntriesToResponse(entries []domain.DailyEntry) []DailyEntryResponse {
	out := make([]DailyEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = DailyEntryResponse{
			ID:          e.ID.Hex(),
			PeriodID:    e.PeriodID.Hex(),
			TrainerID:   e.TrainerID.Hex(),
			WeekNo:      e.WeekNo,
			DayNo:       e.DayNo,
			WorkoutDate: calendar.FormatDate(e.WorkoutDate),
			WorkoutType: e.WorkoutType,
			Sets:        e.Sets,
			Reps:        e.Reps,
		}
	}
	return out
}

type SubmitEntriesResponse struct {
	Period     *WeekPeriodResponse  `json:"period"`
	Entries    []DailyEntryResponse `json:"entries"`
	Skipped    int                  `json:"skipped"`
	NextPeriod *WeekPeriodResponse  `json:"nextPeriod"`
}

type PeriodWithEntriesResponse struct {
	WeekPeriodResponse
	Entries []DailyEntryResponse `json:"entries"`
}

func MapPeriodsToResponse(periods []service.PeriodWithEntries, loc *time.Location) []PeriodWithEntriesResponse {
	out := make([]PeriodWithEntriesResponse, len(periods))
	for i := range periods {
		out[i] = PeriodWithEntriesResponse{
			WeekPeriodResponse: *MapWeekPeriodToResponse(&periods[i].WeekPeriod, loc),
			Entries:            MapDailyEntriesToResponse(periods[i].Entries),
		}
	}
	return out
}

// --- Attendance ---

type MarkAttendanceRequest struct {
	// Date defaults to today.
	Date string `json:"date"`
}

type AttendanceResponse struct {
	ID          string `json:"id"`
	ClientID    string `json:"clientId"`
	TrainerID   string `json:"trainerId"`
	WorkoutDate string `json:"workoutDate"`
	Status      bool   `json:"status"`
	MarkedAt    string `json:"markedAt"`
}

func MapAttendanceToResponse(r *domain.AttendanceRecord, loc *time.Location) *AttendanceResponse {
	if r == nil {
		return nil
	}
	return &AttendanceResponse{
		ID:          r.ID.Hex(),
		ClientID:    r.ClientID.Hex(),
		TrainerID:   r.TrainerID.Hex(),
		WorkoutDate: calendar.FormatDate(r.WorkoutDate),
		Status:      r.Status,
		MarkedAt:    displayTime(r.CreatedAt, loc),
	}
}

type MarkAttendanceResponse struct {
	Created    bool                `json:"created"`
	Attendance *AttendanceResponse `json:"attendance"`
}

type AttendanceDueResponse struct {
	AssignmentID  string            `json:"assignmentId"`
	ClientID      string            `json:"clientId"`
	ClientName    string            `json:"clientName"`
	ClientPhone   string            `json:"clientPhone,omitempty"`
	WorkoutDays   []string          `json:"workoutDays"`
	PreferredTime []domain.TimeSlot `json:"preferredTime"`
	HasAttendance bool              `json:"hasAttendance"`
}

func MapAttendanceDueToResponse(due []service.AttendanceDue) []AttendanceDueResponse {
	out := make([]AttendanceDueResponse, len(due))
	for i, d := range due {
		slots := d.Assignment.PreferredTime
		if slots == nil {
			slots = []domain.TimeSlot{}
		}
		out[i] = AttendanceDueResponse{
			AssignmentID:  d.Assignment.ID.Hex(),
			ClientID:      d.Client.ID.Hex(),
			ClientName:    d.Client.Name,
			ClientPhone:   d.Client.Phone,
			WorkoutDays:   d.Assignment.WorkoutDays,
			PreferredTime: slots,
			HasAttendance: d.HasAttendance,
		}
	}
	return out
}

type ReportDayResponse struct {
	Date       string              `json:"date"`
	Weekday    string              `json:"weekday"`
	Attended   bool                `json:"attended"`
	Attendance *AttendanceResponse `json:"attendance"`
}

type MonthlyReportResponse struct {
	ClientID         string              `json:"clientId"`
	Year             int                 `json:"year"`
	Month            int                 `json:"month"`
	WorkoutStartDate string              `json:"workoutStartDate"`
	WorkoutDays      []string            `json:"workoutDays"`
	Days             []ReportDayResponse `json:"days"`
}

func MapMonthlyReportToResponse(r *service.MonthlyReport, loc *time.Location) MonthlyReportResponse {
	days := make([]ReportDayResponse, len(r.Days))
	for i, d := range r.Days {
		days[i] = ReportDayResponse{
			Date:       calendar.FormatDate(d.Date),
			Weekday:    calendar.WeekdayName(d.Date),
			Attended:   d.Attended,
			Attendance: MapAttendanceToResponse(d.Attendance, loc),
		}
	}
	return MonthlyReportResponse{
		ClientID:         r.ClientID.Hex(),
		Year:             r.Year,
		Month:            int(r.Month),
		WorkoutStartDate: calendar.FormatDate(r.StartDate),
		WorkoutDays:      r.WorkoutDays,
		Days:             days,
	}
}

type ReportExportResponse struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

// --- Consultations ---

type ScheduleConsultationRequest struct {
	ClientID       string    `json:"clientId" binding:"required"`
	ScheduledAt    time.Time `json:"datetime" binding:"required"` // RFC3339
	ConsultationNo int       `json:"consultationNo" binding:"required"`
	Notes          string    `json:"notes"`
	// WorkoutStartDate (YYYY-MM-DD) starts the rotation on the second consultation.
	WorkoutStartDate string `json:"workoutStartDate"`
}

type TrainerIntakeRequest struct {
	ClientID     string `json:"clientId" binding:"required"`
	Goals        string `json:"goals"`
	Injuries     string `json:"injuries"`
	FitnessLevel string `json:"fitnessLevel"`
	Notes        string `json:"notes"`
}

type ConsultationResponse struct {
	ID             string `json:"id"`
	ClientID       string `json:"clientId"`
	UserID         string `json:"userId"`
	ScheduledAt    string `json:"datetime"`
	ConsultationNo int    `json:"consultationNo"`
	Notes          string `json:"notes,omitempty"`
	Done           bool   `json:"done"`
}

func MapConsultationToResponse(c *domain.Consultation, loc *time.Location) ConsultationResponse {
	return ConsultationResponse{
		ID:             c.ID.Hex(),
		ClientID:       c.ClientID.Hex(),
		UserID:         c.UserID.Hex(),
		ScheduledAt:    displayTime(c.ScheduledAt, loc),
		ConsultationNo: c.ConsultationNo,
		Notes:          c.Notes,
		Done:           c.Done,
	}
}

type ScheduleConsultationResponse struct {
	Consultation     ConsultationResponse `json:"consultation"`
	Stage            string               `json:"consultationStage"`
	ClosedPreviousID *string              `json:"closedPreviousId,omitempty"`
	FirstPeriod      *WeekPeriodResponse  `json:"firstPeriod,omitempty"`
}

type TrainerIntakeResponse struct {
	ID           string `json:"id"`
	ClientID     string `json:"clientId"`
	UserID       string `json:"userId"`
	Goals        string `json:"goals,omitempty"`
	Injuries     string `json:"injuries,omitempty"`
	FitnessLevel string `json:"fitnessLevel,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

func MapTrainerIntakeToResponse(in *domain.TrainerIntake) TrainerIntakeResponse {
	return TrainerIntakeResponse{
		ID:           in.ID.Hex(),
		ClientID:     in.ClientID.Hex(),
		UserID:       in.UserID.Hex(),
		Goals:        in.Goals,
		Injuries:     in.Injuries,
		FitnessLevel: in.FitnessLevel,
		Notes:        in.Notes,
	}
}

type ClientSummaryResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone,omitempty"`
	ConsultationStage string `json:"consultationStage"`
}

type PendingConsultationResponse struct {
	Consultation ConsultationResponse  `json:"consultation"`
	Client       ClientSummaryResponse `json:"client"`
}

func MapPendingConsultationsToResponse(pending []service.PendingConsultation, loc *time.Location) []PendingConsultationResponse {
	out := make([]PendingConsultationResponse, len(pending))
	for i := range pending {
		p := &pending[i]
		out[i] = PendingConsultationResponse{
			Consultation: MapConsultationToResponse(&p.Consultation, loc),
			Client: ClientSummaryResponse{
				ID:                p.Client.ID.Hex(),
				Name:              p.Client.Name,
				Email:             p.Client.Email,
				Phone:             p.Client.Phone,
				ConsultationStage: string(p.Client.ConsultationStage),
			},
		}
	}
	return out
}

// --- Program assignment ---

type AssignProgramRequest struct {
	ProgramID     string            `json:"programId" binding:"required"`
	TrainerID     string            `json:"trainerId" binding:"required"`
	DietitianID   string            `json:"dietitianId"`
	WorkoutDays   []string          `json:"workoutDays" binding:"required"`
	PreferredTime []domain.TimeSlot `json:"preferredTime"`
}

type ProgramAssignmentResponse struct {
	ID            string            `json:"id"`
	ClientID      string            `json:"clientId"`
	ProgramID     string            `json:"programId"`
	TrainerID     string            `json:"trainerId"`
	DietitianID   *string           `json:"dietitianId,omitempty"`
	WorkoutDays   []string          `json:"workoutDays"`
	PreferredTime []domain.TimeSlot `json:"preferredTime,omitempty"`
	Status        string            `json:"status"`
	AssignedAt    string            `json:"assignedAt"`
}

func MapAssignmentToResponse(a *domain.ProgramAssignment, loc *time.Location) ProgramAssignmentResponse {
	resp := ProgramAssignmentResponse{
		ID:            a.ID.Hex(),
		ClientID:      a.ClientID.Hex(),
		ProgramID:     a.ProgramID.Hex(),
		TrainerID:     a.TrainerID.Hex(),
		WorkoutDays:   a.WorkoutDays,
		PreferredTime: a.PreferredTime,
		Status:        string(a.Status),
		AssignedAt:    displayTime(a.AssignedAt, loc),
	}
	if a.DietitianID != nil {
		hex := a.DietitianID.Hex()
		resp.DietitianID = &hex
	}
	return resp
}
