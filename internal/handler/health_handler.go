package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/config"
	"github.com/srm-ap/portal-api/internal/utils"
)

const probeTimeout = 2 * time.Second

// HealthResponse represents the payload returned by the health endpoint.
// Dependency probes report "up", "down" or "disabled".
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Service     string            `json:"service"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks"`
}

// HealthCheck returns a handler that reports application health along with
// live database and cache probe results. A failed probe degrades the status
// but still answers 200; orchestrators read the body.
func HealthCheck(cfg config.Config, db *gorm.DB, cache *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), probeTimeout)
		defer cancel()

		checks := map[string]string{
			"database": probeDatabase(ctx, db),
			"redis":    probeRedis(ctx, cache),
		}

		status := "ok"
		for _, state := range checks {
			if state == "down" {
				status = "degraded"
				break
			}
		}

		payload := HealthResponse{
			Status:      status,
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Checks:      checks,
		}

		return utils.SendSuccess(c, "service health", payload)
	}
}

func probeDatabase(ctx context.Context, db *gorm.DB) string {
	if db == nil {
		return "disabled"
	}
	sqlDB, err := db.DB()
	if err != nil {
		return "down"
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "down"
	}
	return "up"
}

func probeRedis(ctx context.Context, cache *redis.Client) string {
	if cache == nil {
		return "disabled"
	}
	if err := cache.Ping(ctx).Err(); err != nil {
		return "down"
	}
	return "up"
}
