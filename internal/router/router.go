package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/config"
	"github.com/srm-ap/portal-api/internal/handler"
	"github.com/srm-ap/portal-api/internal/middleware"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler          *handler.AuthHandler
	WindowHandler        *handler.WindowHandler
	GroupHandler         *handler.GroupHandler
	ProjectHandler       *handler.ProjectHandler
	ApplicationHandler   *handler.ApplicationHandler
	EvaluationHandler    *handler.EvaluationHandler
	AdminUserHandler     *handler.AdminUserHandler
	AdminActivityHandler *handler.AdminActivityHandler
	CourseHandler        *handler.CourseHandler
	DashboardHandler     *handler.DashboardHandler
	NotificationHandler  *handler.NotificationHandler
	FileHandler          *handler.FileHandler
	SeedHandler          *handler.SeedHandler
	JWTMiddleware        fiber.Handler

	DB    *gorm.DB
	Redis *redis.Client
}

// Register wires the HTTP routes into the fiber application. Role gates here
// are coarse token-role checks; flag-level authorization (coordinator,
// external evaluator) is enforced in the services.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DB, deps.Redis))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	staffOnly := middleware.RequireStaff()
	adminOnly := middleware.RequireRole(string(models.RoleAdmin))

	if deps.SeedHandler != nil {
		seed := api.Group("/seed")
		deps.SeedHandler.Register(seed)
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", middleware.RateLimit("auth", 20, time.Minute))
		deps.AuthHandler.Register(auth, jwtMiddleware)
	}

	if deps.WindowHandler != nil {
		windows := api.Group("/windows", jwtMiddleware)
		deps.WindowHandler.Register(windows, staffOnly, adminOnly)
	}

	if deps.GroupHandler != nil {
		groups := api.Group("/groups", jwtMiddleware)
		deps.GroupHandler.Register(groups, staffOnly)
	}

	if deps.ProjectHandler != nil {
		projects := api.Group("/projects", jwtMiddleware)
		deps.ProjectHandler.Register(projects, staffOnly)
	}

	if deps.ApplicationHandler != nil {
		applications := api.Group("/applications", jwtMiddleware)
		deps.ApplicationHandler.Register(applications, staffOnly)
	}

	if deps.EvaluationHandler != nil {
		evaluations := api.Group("/evaluations", jwtMiddleware)
		deps.EvaluationHandler.Register(evaluations, staffOnly)
	}

	if deps.CourseHandler != nil {
		courses := api.Group("/courses", jwtMiddleware)
		deps.CourseHandler.Register(courses, adminOnly)
	}

	if deps.DashboardHandler != nil {
		dashboard := api.Group("/dashboard", jwtMiddleware)
		deps.DashboardHandler.Register(dashboard)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	if deps.FileHandler != nil {
		files := api.Group("/files", jwtMiddleware)
		deps.FileHandler.Register(files)
	}

	if deps.AdminUserHandler != nil || deps.AdminActivityHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, adminOnly)
		if deps.AdminUserHandler != nil {
			users := admin.Group("/users")
			deps.AdminUserHandler.Register(users)
		}
		if deps.AdminActivityHandler != nil {
			activity := admin.Group("/activity")
			deps.AdminActivityHandler.Register(activity)
		}
	}
}
