package api

import (
	"net/http"
	"time"

	"frontline/coaching-app/internal/calendar"
	"frontline/coaching-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ConsultationHandler struct {
	consultationService service.ConsultationService
	loc                 *time.Location
}

func NewConsultationHandler(consultationService service.ConsultationService, loc *time.Location) *ConsultationHandler {
	return &ConsultationHandler{
		consultationService: consultationService,
		loc:                 loc,
	}
}

// ScheduleConsultation godoc
// @Summary Book a consultation
// @Description Books a consultation with the caller, closes the previous open one and advances the client's consultation stage. A second consultation carrying workoutStartDate also starts the rotation.
// @Tags Consultations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ScheduleConsultationRequest true "Consultation details"
// @Success 201 {object} ScheduleConsultationResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 404 {object} gin.H "Client not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /consultations [post]
func (h *ConsultationHandler) ScheduleConsultation(c *gin.Context) {
	var req ScheduleConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	clientID, err := primitive.ObjectIDFromHex(req.ClientID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId format.")
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	input := service.ScheduleInput{
		ClientID:       clientID,
		UserID:         userID,
		ScheduledAt:    req.ScheduledAt,
		ConsultationNo: req.ConsultationNo,
		Notes:          req.Notes,
	}
	if req.WorkoutStartDate != "" {
		start, err := calendar.ParseDate(req.WorkoutStartDate)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		input.WorkoutStartDate = &start
	}

	res, err := h.consultationService.ScheduleConsultation(c.Request.Context(), input)
	if err != nil {
		abortWithServiceError(c, err, "Failed to schedule consultation.")
		return
	}

	resp := ScheduleConsultationResponse{
		Consultation: MapConsultationToResponse(&res.Consultation, h.loc),
		Stage:        string(res.Stage),
		FirstPeriod:  MapWeekPeriodToResponse(res.FirstPeriod, h.loc),
	}
	if res.ClosedPrevious != nil {
		hex := res.ClosedPrevious.Hex()
		resp.ClosedPreviousID = &hex
	}
	c.JSON(http.StatusCreated, resp)
}

// RecordTrainerIntake godoc
// @Summary Record a trainer intake
// @Description Stores the trainer's intake form and moves the client to the trainer_intake_done stage.
// @Tags Consultations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TrainerIntakeRequest true "Intake details"
// @Success 201 {object} TrainerIntakeResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 404 {object} gin.H "Client not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /consultations/intake [post]
func (h *ConsultationHandler) RecordTrainerIntake(c *gin.Context) {
	var req TrainerIntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	clientID, err := primitive.ObjectIDFromHex(req.ClientID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId format.")
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	intake, err := h.consultationService.RecordTrainerIntake(c.Request.Context(), service.IntakeInput{
		ClientID:     clientID,
		UserID:       userID,
		Goals:        req.Goals,
		Injuries:     req.Injuries,
		FitnessLevel: req.FitnessLevel,
		Notes:        req.Notes,
	})
	if err != nil {
		abortWithServiceError(c, err, "Failed to record trainer intake.")
		return
	}

	c.JSON(http.StatusCreated, MapTrainerIntakeToResponse(intake))
}

// ListPendingConsultations godoc
// @Summary Open consultations awaiting follow-up
// @Description The caller's open consultations whose client finished the first consultation or the trainer intake.
// @Tags Consultations
// @Produce json
// @Security BearerAuth
// @Success 200 {array} PendingConsultationResponse
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /consultations/pending [get]
func (h *ConsultationHandler) ListPendingConsultations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	pending, err := h.consultationService.ListPendingConsultations(c.Request.Context(), userID)
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve pending consultations.")
		return
	}

	c.JSON(http.StatusOK, MapPendingConsultationsToResponse(pending, h.loc))
}
