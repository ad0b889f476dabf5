package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frontline/coaching-app/internal/api"
	"frontline/coaching-app/internal/config"
	"frontline/coaching-app/internal/logging"
	"frontline/coaching-app/internal/metrics"
	"frontline/coaching-app/internal/repository"
	"frontline/coaching-app/internal/repository/memory"
	"frontline/coaching-app/internal/repository/mongo"
	"frontline/coaching-app/internal/service"
	"frontline/coaching-app/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// repositories groups the storage backends selected by database.driver.
type repositories struct {
	users         repository.UserRepository
	clients       repository.ClientRepository
	assignments   repository.ProgramAssignmentRepository
	periods       repository.WeekPeriodRepository
	entries       repository.DailyEntryRepository
	attendance    repository.AttendanceRepository
	consultations repository.ConsultationRepository
}

// @title Coaching Back Office API
// @version 1.0
// @description Weekly workout rotation, attendance and consultations for fitness coaching staff.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	logging.Setup(logging.SetupParams{
		LogFileName:   cfg.Log.File,
		LogToStdout:   cfg.Log.Stdout,
		LogLevel:      cfg.Log.Level,
		LogFormatJSON: cfg.Log.JSON,
	})
	log.Info("starting coaching back office server")

	loc, err := cfg.Rotation.Location()
	if err != nil {
		log.Fatalf("invalid rotation timezone: %v", err)
	}

	// --- Repositories ---
	repos, cleanup, err := openRepositories(cfg.Database)
	if err != nil {
		log.Fatalf("could not open %s repositories: %v", cfg.Database.Driver, err)
	}
	defer cleanup()

	// --- Report storage ---
	var reports storage.ReportStorage
	if cfg.S3.Enabled() {
		reports, err = storage.NewS3Storage(context.Background(), cfg.S3)
		if err != nil {
			log.Fatalf("failed to initialize S3 storage: %v", err)
		}
	} else {
		log.Warn("s3.bucket_name not set, monthly report export is disabled")
	}

	// --- Services ---
	metricsManager := metrics.NewManager(cfg.Metrics.Namespace, "server", prometheus.DefaultRegisterer)

	rotationService := service.NewRotationService(repos.clients, repos.users, repos.assignments, repos.periods, repos.entries, metricsManager)
	attendanceService := service.NewAttendanceService(repos.clients, repos.users, repos.assignments, repos.attendance, reports, service.AttendanceOptions{
		Location:     loc,
		ReportPrefix: cfg.Reports.Prefix,
		URLExpiry:    cfg.Reports.URLExpiry,
	}, metricsManager)
	consultationService := service.NewConsultationService(repos.clients, repos.users, repos.consultations, rotationService)
	assignmentService := service.NewAssignmentService(repos.clients, repos.users, repos.assignments)

	// --- Gin Engine ---
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(), api.RequestMetrics(metricsManager))
	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api.SetupRoutes(router, cfg.JWT.Secret, loc, rotationService, attendanceService, consultationService, assignmentService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infof("server listening on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen and serve: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
		return
	}

	log.Info("server exiting")
}

func openRepositories(cfg config.DatabaseConfig) (*repositories, func(), error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn("using in-memory repositories, data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			users:         store.Users(),
			clients:       store.Clients(),
			assignments:   store.Assignments(),
			periods:       store.WeekPeriods(),
			entries:       store.DailyEntries(),
			attendance:    store.Attendance(),
			consultations: store.Consultations(),
		}, func() {}, nil
	}

	dbClient, err := mongo.ConnectDB(cfg.URI)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		log.Info("disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Errorf("failed to disconnect MongoDB: %v", err)
		}
	}
	appDB := dbClient.Database(cfg.Name)
	log.Infof("connected to MongoDB database %q", cfg.Name)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
			log.Errorf("index creation: %v", err)
			return
		}
		log.Debug("index creation completed")
	}()

	return &repositories{
		users:         mongo.NewMongoUserRepository(appDB),
		clients:       mongo.NewMongoClientRepository(appDB),
		assignments:   mongo.NewMongoAssignmentRepository(appDB),
		periods:       mongo.NewMongoWeekPeriodRepository(appDB),
		entries:       mongo.NewMongoDailyEntryRepository(appDB),
		attendance:    mongo.NewMongoAttendanceRepository(appDB),
		consultations: mongo.NewMongoConsultationRepository(appDB),
	}, cleanup, nil
}
