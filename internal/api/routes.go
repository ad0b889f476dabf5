package api

import (
	"net/http"
	"time"

	"frontline/coaching-app/internal/domain" // Needed for RoleMiddleware
	"frontline/coaching-app/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	loc *time.Location,
	rotationService service.RotationService,
	attendanceService service.AttendanceService,
	consultationService service.ConsultationService,
	assignmentService service.AssignmentService,
) {
	rotationHandler := NewRotationHandler(rotationService, loc)
	attendanceHandler := NewAttendanceHandler(attendanceService, loc)
	consultationHandler := NewConsultationHandler(consultationService, loc)
	assignmentHandler := NewAssignmentHandler(assignmentService, loc)

	authMiddleware := AuthMiddleware(jwtSecret)
	floorStaff := RoleMiddleware(domain.RoleTrainer, domain.RoleAdmin, domain.RoleManager)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	protected := router.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Rotation & Attendance ---
		clientGroup := protected.Group("/clients/:clientId")
		{
			// POST /api/v1/clients/{clientId}/rotation
			clientGroup.POST("/rotation", floorStaff, rotationHandler.StartRotation)
			// GET /api/v1/clients/{clientId}/periods
			clientGroup.GET("/periods", floorStaff, rotationHandler.ListPeriods)
			// POST /api/v1/clients/{clientId}/periods/{periodId}/entries
			clientGroup.POST("/periods/:periodId/entries", floorStaff, rotationHandler.SubmitDailyEntries)

			clientGroup.POST("/attendance", floorStaff, attendanceHandler.MarkAttendance)
			clientGroup.GET("/attendance/monthly", floorStaff, attendanceHandler.MonthlyReport)
			clientGroup.POST("/attendance/monthly/export", floorStaff, attendanceHandler.ExportMonthlyReport)

			// --- Program assignment ---
			clientGroup.POST("/assignment",
				RoleMiddleware(domain.RoleAdmin, domain.RoleManager, domain.RoleSales),
				assignmentHandler.AssignProgram)
		}

		// GET /api/v1/attendance?date=YYYY-MM-DD
		protected.GET("/attendance", floorStaff, attendanceHandler.ListAttendanceForDate)

		// --- Consultations (any staff member) ---
		consultationGroup := protected.Group("/consultations")
		{
			consultationGroup.POST("", consultationHandler.ScheduleConsultation)
			consultationGroup.POST("/intake", consultationHandler.RecordTrainerIntake)
			consultationGroup.GET("/pending", consultationHandler.ListPendingConsultations)
		}
	}
}
