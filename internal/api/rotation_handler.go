package api

import (
	"net/http"
	"time"

	"frontline/coaching-app/internal/calendar"
	"frontline/coaching-app/internal/service"

	"github.com/gin-gonic/gin"
)

type RotationHandler struct {
	rotationService service.RotationService
	loc             *time.Location
}

func NewRotationHandler(rotationService service.RotationService, loc *time.Location) *RotationHandler {
	return &RotationHandler{
		rotationService: rotationService,
		loc:             loc,
	}
}

// StartRotation godoc
// @Summary Start a client's weekly rotation
// @Description Records the workout start date and generates week 1 from the client's active program days.
// @Tags Rotation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client's ObjectID Hex"
// @Param request body StartRotationRequest true "Workout start date (YYYY-MM-DD)"
// @Success 201 {object} WeekPeriodResponse "First week period"
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 404 {object} gin.H "Client or trainer not found"
// @Failure 409 {object} gin.H "Rotation already started"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{clientId}/rotation [post]
func (h *RotationHandler) StartRotation(c *gin.Context) {
	clientID, ok := objectIDParam(c, "clientId")
	if !ok {
		return
	}
	var req StartRotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	startDate, err := calendar.ParseDate(req.WorkoutStartDate)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	trainerID, ok := currentUserID(c)
	if !ok {
		return
	}

	period, err := h.rotationService.StartRotation(c.Request.Context(), clientID, trainerID, startDate)
	if err != nil {
		abortWithServiceError(c, err, "Failed to start rotation.")
		return
	}

	c.JSON(http.StatusCreated, MapWeekPeriodToResponse(period, h.loc))
}

// SubmitDailyEntries godoc
// @Summary Submit a week's daily entries
// @Description Stores the entries, closes the period and generates the next week.
// @Tags Rotation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client's ObjectID Hex"
// @Param periodId path string true "Week period's ObjectID Hex"
// @Param request body SubmitEntriesRequest true "Daily entries"
// @Success 200 {object} SubmitEntriesResponse "Closed period, stored entries and the next period"
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 404 {object} gin.H "Client, trainer or period not found"
// @Failure 409 {object} gin.H "Period already closed"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{clientId}/periods/{periodId}/entries [post]
func (h *RotationHandler) SubmitDailyEntries(c *gin.Context) {
	clientID, ok := objectIDParam(c, "clientId")
	if !ok {
		return
	}
	periodID, ok := objectIDParam(c, "periodId")
	if !ok {
		return
	}
	var req SubmitEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	trainerID, ok := currentUserID(c)
	if !ok {
		return
	}

	res, err := h.rotationService.SubmitDailyEntries(c.Request.Context(), clientID, trainerID, periodID, req.toInputs())
	if err != nil {
		abortWithServiceError(c, err, "Failed to submit daily entries.")
		return
	}

	c.JSON(http.StatusOK, SubmitEntriesResponse{
		Period:     MapWeekPeriodToResponse(res.Period, h.loc),
		Entries:    MapDailyEntriesToResponse(res.Entries),
		Skipped:    res.Skipped,
		NextPeriod: MapWeekPeriodToResponse(res.Next, h.loc),
	})
}

// ListPeriods godoc
// @Summary List a client's week periods
// @Description Returns every period of the client, latest week first, with its daily entries.
// @Tags Rotation
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client's ObjectID Hex"
// @Success 200 {array} PeriodWithEntriesResponse
// @Failure 404 {object} gin.H "Client not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{clientId}/periods [get]
func (h *RotationHandler) ListPeriods(c *gin.Context) {
	clientID, ok := objectIDParam(c, "clientId")
	if !ok {
		return
	}

	periods, err := h.rotationService.ListPeriods(c.Request.Context(), clientID)
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve week periods.")
		return
	}

	c.JSON(http.StatusOK, MapPeriodsToResponse(periods, h.loc))
}
