package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/srm-ap/portal-api/internal/config"
	"github.com/srm-ap/portal-api/internal/database"
	"github.com/srm-ap/portal-api/internal/handler"
	"github.com/srm-ap/portal-api/internal/middleware"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/observability"
	"github.com/srm-ap/portal-api/internal/repository"
	"github.com/srm-ap/portal-api/internal/router"
	"github.com/srm-ap/portal-api/internal/service"
	"github.com/srm-ap/portal-api/internal/utils"
	cloud "github.com/srm-ap/portal-api/pkg/cloudinary"
)

const sseKeepAlive = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Window{},
		&models.Group{},
		&models.GroupMember{},
		&models.Project{},
		&models.Application{},
		&models.ApplicationChoice{},
		&models.Evaluation{},
		&models.Course{},
		&models.Cohort{},
		&models.ActivityLog{},
		&models.FileObject{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	observability.RegisterMetrics()

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	windowRepo := repository.NewWindowRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	fileRepo := repository.NewFileRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	googleVerifier := service.NewGoogleVerifier(cfg.GoogleClientID)

	windowService := service.NewWindowService(windowRepo, validate, logger)
	authzService := service.NewAuthorizationService(userRepo, windowService, logger)
	activityService := service.NewActivityService(activityRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.NotificationChannel, natsConn, logger)

	rootCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	notificationService.Start(rootCtx)

	authService := service.NewAuthService(userRepo, tokens, googleVerifier, redisClient, validate, cfg.AllowedEmailDomain, logger)
	groupService := service.NewGroupService(groupRepo, applicationRepo, authzService, validate, cfg.GroupMaxMembers, logger)
	projectService := service.NewProjectService(projectRepo, validate, logger)
	applicationService := service.NewApplicationService(applicationRepo, groupRepo, projectRepo, authzService, notificationService, activityService, validate, cfg.GroupMinMembers, logger)
	evaluationService := service.NewEvaluationService(evaluationRepo, groupRepo, authzService, notificationService, activityService, validate, logger)
	adminUserService := service.NewAdminUserService(userRepo, activityService, validate, logger)
	courseService := service.NewCourseService(courseRepo, activityService, validate, logger)
	dashboardService := service.NewDashboardService(analyticsRepo, applicationRepo, evaluationRepo, windowRepo, groupRepo, windowService, redisClient, cfg.DashboardCacheTTL, logger)
	fileService := service.NewFileService(uploader, fileRepo, groupRepo, cfg.MaxUploadMB, logger)
	seedService := service.NewSeedService(userRepo, courseRepo, cfg.SeedEnabled, cfg.SeedToken, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: utils.ErrorHandler,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:          handler.NewAuthHandler(authService, logger),
		WindowHandler:        handler.NewWindowHandler(windowService, logger),
		GroupHandler:         handler.NewGroupHandler(groupService, logger),
		ProjectHandler:       handler.NewProjectHandler(projectService, authzService, logger),
		ApplicationHandler:   handler.NewApplicationHandler(applicationService, authzService, logger),
		EvaluationHandler:    handler.NewEvaluationHandler(evaluationService, authzService, logger),
		AdminUserHandler:     handler.NewAdminUserHandler(adminUserService, authzService, logger),
		AdminActivityHandler: handler.NewAdminActivityHandler(activityService, logger),
		CourseHandler:        handler.NewCourseHandler(courseService, authzService, logger),
		DashboardHandler:     handler.NewDashboardHandler(dashboardService, authzService, logger),
		NotificationHandler:  handler.NewNotificationHandler(notificationService, logger, sseKeepAlive),
		FileHandler:          handler.NewFileHandler(fileService, authzService, logger),
		SeedHandler:          handler.NewSeedHandler(seedService, logger),
		JWTMiddleware:        middleware.JWTProtected(cfg.JWTSecret),
		DB:                   db,
		Redis:                redisClient,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
