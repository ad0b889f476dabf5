package api

import (
	"net/http"
	"time"

	"frontline/coaching-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AssignmentHandler struct {
	assignmentService service.AssignmentService
	loc               *time.Location
}

func NewAssignmentHandler(assignmentService service.AssignmentService, loc *time.Location) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentService: assignmentService,
		loc:               loc,
	}
}

// AssignProgram godoc
// @Summary Assign a program to a client
// @Description Deactivates the client's current assignment and makes the new one active.
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client's ObjectID Hex"
// @Param request body AssignProgramRequest true "Program, staff and schedule"
// @Success 201 {object} ProgramAssignmentResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 404 {object} gin.H "Client or staff member not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{clientId}/assignment [post]
func (h *AssignmentHandler) AssignProgram(c *gin.Context) {
	clientID, ok := objectIDParam(c, "clientId")
	if !ok {
		return
	}
	var req AssignProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	input := service.AssignProgramInput{
		ClientID:      clientID,
		WorkoutDays:   req.WorkoutDays,
		PreferredTime: req.PreferredTime,
	}
	var err error
	if input.ProgramID, err = primitive.ObjectIDFromHex(req.ProgramID); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid programId format.")
		return
	}
	if input.TrainerID, err = primitive.ObjectIDFromHex(req.TrainerID); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid trainerId format.")
		return
	}
	if req.DietitianID != "" {
		dietitianID, err := primitive.ObjectIDFromHex(req.DietitianID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid dietitianId format.")
			return
		}
		input.DietitianID = &dietitianID
	}

	assignment, err := h.assignmentService.AssignProgram(c.Request.Context(), input)
	if err != nil {
		abortWithServiceError(c, err, "Failed to assign program.")
		return
	}

	c.JSON(http.StatusCreated, MapAssignmentToResponse(assignment, h.loc))
}
