package api

import (
	"net/http"
	"strconv"
	"time"

	"frontline/coaching-app/internal/calendar"
	"frontline/coaching-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AttendanceHandler struct {
	attendanceService service.AttendanceService
	loc               *time.Location
}

func NewAttendanceHandler(attendanceService service.AttendanceService, loc *time.Location) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceService: attendanceService,
		loc:               loc,
	}
}

// MarkAttendance godoc
// @Summary Mark a client present
// @Description Idempotent: a second mark for the same client and date returns the existing record.
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client's ObjectID Hex"
// @Param request body MarkAttendanceRequest false "Workout date, defaults to today"
// @Success 201 {object} MarkAttendanceResponse "Attendance recorded"
// @Success 200 {object} MarkAttendanceResponse "Attendance was already recorded"
// @Failure 400 {object} gin.H "Invalid date"
// @Failure 404 {object} gin.H "Client or trainer not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{clientId}/attendance [post]
func (h *AttendanceHandler) MarkAttendance(c *gin.Context) {
	clientID, ok := objectIDParam(c, "clientId")
	if !ok {
		return
	}
	var req MarkAttendanceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	date, ok := h.optionalDate(c, req.Date)
	if !ok {
		return
	}
	trainerID, ok := currentUserID(c)
	if !ok {
		return
	}

	res, err := h.attendanceService.MarkAttendance(c.Request.Context(), clientID, trainerID, date)
	if err != nil {
		abortWithServiceError(c, err, "Failed to mark attendance.")
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, MarkAttendanceResponse{
		Created:    res.Created,
		Attendance: MapAttendanceToResponse(&res.Record, h.loc),
	})
}

// ListAttendanceForDate godoc
// @Summary Assignments due for attendance
// @Description Lists the trainer's active assignments with a workout on the date, flagged with whether attendance was marked.
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {array} AttendanceDueResponse
// @Failure 400 {object} gin.H "Invalid date"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /attendance [get]
func (h *AttendanceHandler) ListAttendanceForDate(c *gin.Context) {
	date, ok := h.optionalDate(c, c.Query("date"))
	if !ok {
		return
	}
	trainerID, ok := currentUserID(c)
	if !ok {
		return
	}

	due, err := h.attendanceService.ListAttendanceForDate(c.Request.Context(), trainerID, date)
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve attendance list.")
		return
	}

	c.JSON(http.StatusOK, MapAttendanceDueToResponse(due))
}

// MonthlyReport godoc
// @Summary Monthly attendance calendar
// @Description Every scheduled workout day of the month on or after the client's start date, with its attendance.
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client's ObjectID Hex"
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Success 200 {object} MonthlyReportResponse
// @Failure 400 {object} gin.H "Invalid year or month"
// @Failure 404 {object} gin.H "Client not found"
// @Failure 422 {object} gin.H "Rotation not started or no active program"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{clientId}/attendance/monthly [get]
func (h *AttendanceHandler) MonthlyReport(c *gin.Context) {
	clientID, year, month, ok := h.reportParams(c)
	if !ok {
		return
	}

	report, err := h.attendanceService.MonthlyReport(c.Request.Context(), clientID, year, month)
	if err != nil {
		abortWithServiceError(c, err, "Failed to build monthly report.")
		return
	}

	c.JSON(http.StatusOK, MapMonthlyReportToResponse(report, h.loc))
}

// ExportMonthlyReport godoc
// @Summary Export the monthly attendance calendar
// @Description Uploads the report as CSV to object storage and returns a temporary download URL.
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client's ObjectID Hex"
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Success 200 {object} ReportExportResponse
// @Failure 400 {object} gin.H "Invalid year or month"
// @Failure 404 {object} gin.H "Client not found"
// @Failure 422 {object} gin.H "Rotation not started, no active program or export disabled"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{clientId}/attendance/monthly/export [post]
func (h *AttendanceHandler) ExportMonthlyReport(c *gin.Context) {
	clientID, year, month, ok := h.reportParams(c)
	if !ok {
		return
	}

	export, err := h.attendanceService.ExportMonthlyReport(c.Request.Context(), clientID, year, month)
	if err != nil {
		abortWithServiceError(c, err, "Failed to export monthly report.")
		return
	}

	c.JSON(http.StatusOK, ReportExportResponse{
		Key:       export.Key,
		URL:       export.URL,
		ExpiresAt: displayTime(export.ExpiresAt, h.loc),
	})
}

// optionalDate parses a YYYY-MM-DD value; empty means today, resolved by
// the service.
func (h *AttendanceHandler) optionalDate(c *gin.Context, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	date, err := calendar.ParseDate(raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return time.Time{}, false
	}
	return date, true
}

func (h *AttendanceHandler) reportParams(c *gin.Context) (primitive.ObjectID, int, time.Month, bool) {
	clientID, ok := objectIDParam(c, "clientId")
	if !ok {
		return clientID, 0, 0, false
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Query parameter 'year' must be a number.")
		return clientID, 0, 0, false
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Query parameter 'month' must be a number.")
		return clientID, 0, 0, false
	}
	return clientID, year, time.Month(month), true
}
