package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedService bootstraps a fresh deployment: the first admin account and
// the course catalogue. Both operations are idempotent so the seed step can
// run on every deploy.
type SeedService interface {
	SeedAdmin(ctx context.Context, token, name, email, password string) (int64, error)
	SeedCourses(ctx context.Context, token string, items []models.Course) (int64, error)
}

type seedService struct {
	users   repository.UserRepository
	courses repository.CourseRepository
	enabled bool
	token   string
	logger  zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(users repository.UserRepository, courses repository.CourseRepository, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		users:   users,
		courses: courses,
		enabled: enabled,
		token:   token,
		logger:  logger.With().Str("component", "seed_service").Logger(),
	}
}

// SeedAdmin creates the first admin account. It is a no-op when an active
// admin already exists, so the portal never ends up with two seeded admins.
func (s *seedService) SeedAdmin(ctx context.Context, token, name, email, password string) (int64, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return 0, ErrSeedUnauthorized
	}

	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if name == "" || email == "" {
		return 0, fmt.Errorf("admin name and email are required")
	}
	if len(password) < 8 {
		return 0, fmt.Errorf("admin password must be at least 8 characters")
	}

	existing, err := s.users.CountActiveAdmins(ctx)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		s.logger.Info().Int64("admins", existing).Msg("admin seed skipped, active admin present")
		return 0, nil
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return 0, fmt.Errorf("email %s is already registered", email)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	admin := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Status:       models.UserStatusActive,
	}
	if err := s.users.Create(ctx, &admin); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, nil
		}

		return 0, err
	}

	s.logger.Info().Uint("user_id", admin.ID).Str("email", email).Msg("initial admin seeded")

	return 1, nil
}

// SeedCourses loads the course catalogue, skipping codes that already exist.
func (s *seedService) SeedCourses(ctx context.Context, token string, items []models.Course) (int64, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return 0, ErrSeedUnauthorized
	}

	var affected int64
	for i := range items {
		code := strings.ToUpper(strings.TrimSpace(items[i].Code))
		if code == "" {
			continue
		}
		items[i].Code = code

		if _, err := s.courses.GetByCode(ctx, code); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return affected, err
		}

		if err := s.courses.Create(ctx, &items[i]); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}

			return affected, err
		}
		affected++
	}

	s.logger.Info().Int64("affected", affected).Msg("courses seeded")

	return affected, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}
