package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/models"
)

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	ProjectType string
	Status      string
	GroupID     *uint
	ProjectID   *uint
	Page        int
	PageSize    int
}

// ApplicationRepository defines persistence operations for applications.
type ApplicationRepository interface {
	List(ctx context.Context, filter ApplicationFilter) ([]models.Application, int64, error)
	GetByID(ctx context.Context, id uint) (models.Application, error)
	GetByGroup(ctx context.Context, groupID uint, projectType models.ProjectType) (models.Application, error)
	Create(ctx context.Context, application *models.Application) error
	UpdateDecided(ctx context.Context, id uint, policy RetryPolicy, recompute func(models.Application) (map[string]interface{}, error)) (models.Application, error)
	CountByStatus(ctx context.Context, projectType models.ProjectType) (map[models.ApplicationStatus]int64, error)
}

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository instantiates a GORM-backed repository.
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func orderedChoices(db *gorm.DB) *gorm.DB {
	return db.Order("rank ASC")
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]models.Application, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Application{})

	if filter.ProjectType != "" {
		query = query.Where("project_type = ?", filter.ProjectType)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if filter.GroupID != nil {
		query = query.Where("group_id = ?", *filter.GroupID)
	}

	if filter.ProjectID != nil {
		query = query.Where(
			"id IN (?)",
			r.db.Model(&models.ApplicationChoice{}).Select("application_id").Where("project_id = ?", *filter.ProjectID),
		)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var applications []models.Application
	err := query.
		Preload("Choices", orderedChoices).
		Preload("Group").
		Order("created_at DESC").
		Find(&applications).Error
	if err != nil {
		return nil, 0, err
	}

	return applications, total, nil
}

func (r *applicationRepository) GetByID(ctx context.Context, id uint) (models.Application, error) {
	var application models.Application
	err := r.db.WithContext(ctx).
		Preload("Choices", orderedChoices).
		Preload("Choices.Project").
		Preload("Group").
		Preload("Group.Members").
		First(&application, id).Error
	if err != nil {
		return models.Application{}, err
	}

	return application, nil
}

func (r *applicationRepository) GetByGroup(ctx context.Context, groupID uint, projectType models.ProjectType) (models.Application, error) {
	var application models.Application
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Where("project_type = ?", projectType).
		Preload("Choices", orderedChoices).
		First(&application).Error
	if err != nil {
		return models.Application{}, err
	}

	return application, nil
}

// Create persists the application together with its ranked choices; GORM
// cascades the association in a single transaction.
func (r *applicationRepository) Create(ctx context.Context, application *models.Application) error {
	return r.db.WithContext(ctx).Create(application).Error
}

// UpdateDecided runs the version-guarded decision write. recompute sees the
// freshly loaded row and returns the column patch; conflicts are retried per
// the policy.
func (r *applicationRepository) UpdateDecided(ctx context.Context, id uint, policy RetryPolicy, recompute func(models.Application) (map[string]interface{}, error)) (models.Application, error) {
	if _, err := UpdateWithRetry(ctx, r.db, policy, id, recompute); err != nil {
		return models.Application{}, err
	}

	return r.GetByID(ctx, id)
}

func (r *applicationRepository) CountByStatus(ctx context.Context, projectType models.ProjectType) (map[models.ApplicationStatus]int64, error) {
	type row struct {
		Status models.ApplicationStatus
		Total  int64
	}

	query := r.db.WithContext(ctx).Model(&models.Application{})
	if projectType != "" {
		query = query.Where("project_type = ?", projectType)
	}

	var rows []row
	if err := query.Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[models.ApplicationStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}

	return counts, nil
}
