package service

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type memoryUserRepo struct {
	users  map[uint]models.User
	nextID uint
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[uint]models.User), nextID: 1}
}

func (m *memoryUserRepo) List(_ context.Context, filter repository.UserFilter) ([]models.User, int64, error) {
	results := make([]models.User, 0, len(m.users))
	for _, user := range m.users {
		if user.DeletedAt.Valid && !filter.IncludeDeleted {
			continue
		}
		if filter.Role != "" && string(user.Role) != filter.Role {
			continue
		}
		if filter.Status != "" && user.Status != filter.Status {
			continue
		}
		if filter.Eligibility != "" && string(user.Eligibility) != filter.Eligibility {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(user.Name), needle) && !strings.Contains(strings.ToLower(user.Email), needle) {
				continue
			}
		}
		results = append(results, user)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	total := int64(len(results))
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start >= len(results) {
			return []models.User{}, total, nil
		}
		end := start + filter.PageSize
		if end > len(results) {
			end = len(results)
		}
		results = results[start:end]
	}

	return results, total, nil
}

func (m *memoryUserRepo) GetByID(_ context.Context, id uint) (models.User, error) {
	user, ok := m.users[id]
	if !ok || user.DeletedAt.Valid {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	needle := strings.ToLower(strings.TrimSpace(email))
	for _, user := range m.users {
		if strings.ToLower(user.Email) == needle && !user.DeletedAt.Valid {
			return user, nil
		}
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (m *memoryUserRepo) Create(_ context.Context, user *models.User) error {
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	m.users[m.nextID] = *user
	m.nextID++
	return nil
}

func (m *memoryUserRepo) Update(_ context.Context, id uint, updates map[string]interface{}) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}

	for column, value := range updates {
		switch column {
		case "name":
			user.Name = value.(string)
		case "email":
			user.Email = value.(string)
		case "role":
			user.Role = models.Role(toString(value))
		case "is_coordinator":
			user.IsCoordinator = value.(bool)
		case "is_external_evaluator":
			user.IsExternalEvaluator = value.(bool)
		case "eligibility":
			user.Eligibility = models.ProjectType(toString(value))
		case "status":
			user.Status = toString(value)
		}
	}
	user.UpdatedAt = time.Now()
	m.users[id] = user
	return user, nil
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case models.Role:
		return string(v)
	case models.ProjectType:
		return string(v)
	default:
		return ""
	}
}

func (m *memoryUserRepo) TouchLastLogin(_ context.Context, id uint, at time.Time) error {
	user, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.LastLoginAt = &at
	m.users[id] = user
	return nil
}

func (m *memoryUserRepo) CountActiveAdmins(_ context.Context) (int64, error) {
	var total int64
	for _, user := range m.users {
		if user.Role == models.RoleAdmin && user.Status == models.UserStatusActive && !user.DeletedAt.Valid {
			total++
		}
	}
	return total, nil
}

func (m *memoryUserRepo) SoftDelete(_ context.Context, id uint) error {
	user, ok := m.users[id]
	if !ok || user.DeletedAt.Valid {
		return gorm.ErrRecordNotFound
	}
	user.Status = models.UserStatusArchived
	user.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	m.users[id] = user
	return nil
}

func (m *memoryUserRepo) Restore(_ context.Context, id uint) (models.User, error) {
	user, ok := m.users[id]
	if !ok || !user.DeletedAt.Valid {
		return models.User{}, gorm.ErrRecordNotFound
	}
	user.Status = models.UserStatusActive
	user.DeletedAt = gorm.DeletedAt{}
	m.users[id] = user
	return user, nil
}

func (m *memoryUserRepo) HardDelete(_ context.Context, id uint) error {
	if _, ok := m.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.users, id)
	return nil
}

type stubGoogleVerifier struct {
	profile GoogleProfile
	err     error
	calls   int
}

func (s *stubGoogleVerifier) Verify(_ context.Context, _ string) (GoogleProfile, error) {
	s.calls++
	if s.err != nil {
		return GoogleProfile{}, s.err
	}
	return s.profile, nil
}

func newAuthFixture(t *testing.T, google GoogleVerifier, allowedDomain string) (AuthService, *memoryUserRepo, *redis.Client) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryUserRepo()
	tokens := NewTokenManager("test-secret-at-least-32-characters", 15*time.Minute, 7*24*time.Hour)
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewAuthService(repo, tokens, google, client, validate, allowedDomain, testLogger())

	return svc, repo, client
}

func seedPasswordUser(t *testing.T, repo *memoryUserRepo, email, password string, role models.Role) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Name:         "Seeded User",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, repo.Create(context.Background(), &user))
	return user
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	svc, repo, client := newAuthFixture(t, &stubGoogleVerifier{}, "")
	user := seedPasswordUser(t, repo, "admin@srm.edu", "strongpass123", models.RoleAdmin)

	result, err := svc.Login(context.Background(), dto.LoginRequest{Email: "admin@srm.edu", Password: "strongpass123"})
	require.NoError(t, err)
	require.Equal(t, user.ID, result.User.ID)
	require.Equal(t, "Bearer", result.Tokens.TokenType)
	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotEmpty(t, result.Tokens.RefreshToken)
	require.NotNil(t, result.User.LastLoginAt)

	stored, err := client.Get(context.Background(), "auth:refresh:1").Result()
	require.NoError(t, err)
	require.NotEmpty(t, stored)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, repo, _ := newAuthFixture(t, &stubGoogleVerifier{}, "")
	seedPasswordUser(t, repo, "admin@srm.edu", "strongpass123", models.RoleAdmin)

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "admin@srm.edu", Password: "wrongpass123"})
	require.ErrorIs(t, err, apperror.InvalidCredentials)
}

func TestAuthServiceLoginArchivedAccount(t *testing.T) {
	svc, repo, _ := newAuthFixture(t, &stubGoogleVerifier{}, "")
	user := seedPasswordUser(t, repo, "gone@srm.edu", "strongpass123", models.RoleStudent)
	stored := repo.users[user.ID]
	stored.Status = models.UserStatusArchived
	repo.users[user.ID] = stored

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "gone@srm.edu", Password: "strongpass123"})
	require.ErrorIs(t, err, apperror.AccountDisabled)
}

func TestAuthServiceRefreshRotatesAndRejectsReplay(t *testing.T) {
	svc, repo, _ := newAuthFixture(t, &stubGoogleVerifier{}, "")
	seedPasswordUser(t, repo, "user@srm.edu", "strongpass123", models.RoleStudent)

	login, err := svc.Login(context.Background(), dto.LoginRequest{Email: "user@srm.edu", Password: "strongpass123"})
	require.NoError(t, err)

	rotated, err := svc.Refresh(context.Background(), dto.RefreshRequest{RefreshToken: login.Tokens.RefreshToken})
	require.NoError(t, err)
	require.NotEmpty(t, rotated.RefreshToken)

	// The spent token must not work a second time, and the replay revokes
	// the whole family.
	_, err = svc.Refresh(context.Background(), dto.RefreshRequest{RefreshToken: login.Tokens.RefreshToken})
	require.ErrorIs(t, err, apperror.TokenRevoked)

	_, err = svc.Refresh(context.Background(), dto.RefreshRequest{RefreshToken: rotated.RefreshToken})
	require.ErrorIs(t, err, apperror.TokenRevoked)
}

func TestAuthServiceRefreshRejectsAccessToken(t *testing.T) {
	svc, repo, _ := newAuthFixture(t, &stubGoogleVerifier{}, "")
	seedPasswordUser(t, repo, "user@srm.edu", "strongpass123", models.RoleStudent)

	login, err := svc.Login(context.Background(), dto.LoginRequest{Email: "user@srm.edu", Password: "strongpass123"})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), dto.RefreshRequest{RefreshToken: login.Tokens.AccessToken})
	require.ErrorIs(t, err, apperror.TokenInvalid)
}

func TestAuthServiceLogoutRevokesRefresh(t *testing.T) {
	svc, repo, _ := newAuthFixture(t, &stubGoogleVerifier{}, "")
	user := seedPasswordUser(t, repo, "user@srm.edu", "strongpass123", models.RoleStudent)

	login, err := svc.Login(context.Background(), dto.LoginRequest{Email: "user@srm.edu", Password: "strongpass123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), user.ID))

	_, err = svc.Refresh(context.Background(), dto.RefreshRequest{RefreshToken: login.Tokens.RefreshToken})
	require.ErrorIs(t, err, apperror.TokenRevoked)
}

func TestAuthServiceGoogleFirstLoginProvisionsStudent(t *testing.T) {
	google := &stubGoogleVerifier{profile: GoogleProfile{Subject: "g-123", Email: "fresh@srm.edu", Name: "Fresh Student"}}
	svc, repo, _ := newAuthFixture(t, google, "srm.edu")

	result, err := svc.LoginWithGoogle(context.Background(), dto.GoogleLoginRequest{IDToken: "opaque"})
	require.NoError(t, err)
	require.Equal(t, "fresh@srm.edu", result.User.Email)
	require.Equal(t, string(models.RoleStudent), result.User.Role)
	require.Empty(t, result.User.Eligibility)

	// A second login reuses the provisioned row.
	again, err := svc.LoginWithGoogle(context.Background(), dto.GoogleLoginRequest{IDToken: "opaque"})
	require.NoError(t, err)
	require.Equal(t, result.User.ID, again.User.ID)
	require.Len(t, repo.users, 1)
}

func TestAuthServiceGoogleRejectsForeignDomain(t *testing.T) {
	google := &stubGoogleVerifier{profile: GoogleProfile{Subject: "g-9", Email: "visitor@gmail.com", Name: "Visitor"}}
	svc, _, _ := newAuthFixture(t, google, "srm.edu")

	_, err := svc.LoginWithGoogle(context.Background(), dto.GoogleLoginRequest{IDToken: "opaque"})
	require.ErrorIs(t, err, apperror.Forbidden)
}
