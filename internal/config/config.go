package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	DatabaseURL string
	RedisURL    string
	NATSURL     string

	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	GoogleClientID     string
	AllowedEmailDomain string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	DashboardCacheTTL time.Duration
	MaxUploadMB       int
	GroupMinMembers   int
	GroupMaxMembers   int

	NotificationChannel string
	CORSAllowOrigins    string

	SeedEnabled bool
	SeedToken   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and an optional
// .env file. Variables use the SRM prefix, e.g. SRM_DATABASE_URL.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SRM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "SRM-AP Portal API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("jwt.access_ttl", "15m")
	v.SetDefault("jwt.refresh_ttl", "168h")
	v.SetDefault("cloudinary.folder", "srm-ap/reports")
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("group.min_members", 1)
	v.SetDefault("group.max_members", 5)
	v.SetDefault("notifications.channel", "srm-ap")
	v.SetDefault("cors.allow_origins", "*")

	accessTTL, err := parseTTL(v.GetString("jwt.access_ttl"), "jwt access ttl")
	if err != nil {
		return Config{}, err
	}
	refreshTTL, err := parseTTL(v.GetString("jwt.refresh_ttl"), "jwt refresh ttl")
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseTTL(v.GetString("dashboard.cache_ttl"), "dashboard cache ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTAccessTTL:           accessTTL,
		JWTRefreshTTL:          refreshTTL,
		GoogleClientID:         v.GetString("google.client_id"),
		AllowedEmailDomain:     strings.ToLower(v.GetString("auth.allowed_domain")),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		DashboardCacheTTL:      cacheTTL,
		MaxUploadMB:            v.GetInt("upload.max_mb"),
		GroupMinMembers:        v.GetInt("group.min_members"),
		GroupMaxMembers:        v.GetInt("group.max_members"),
		NotificationChannel:    v.GetString("notifications.channel"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		SeedEnabled:            v.GetBool("seed.enabled"),
		SeedToken:              v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}
	if cfg.GroupMaxMembers > 0 && cfg.GroupMinMembers > cfg.GroupMaxMembers {
		return Config{}, fmt.Errorf("group min members %d exceeds max %d", cfg.GroupMinMembers, cfg.GroupMaxMembers)
	}

	return cfg, nil
}

func parseTTL(raw, label string) (time.Duration, error) {
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", label, err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", label)
	}
	return ttl, nil
}
