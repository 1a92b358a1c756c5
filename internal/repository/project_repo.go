package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/models"
)

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Search      string
	ProjectType string
	FacultyID   *uint
	Open        *bool
	Page        int
	PageSize    int
}

// ProjectRepository defines persistence operations for faculty projects.
type ProjectRepository interface {
	List(ctx context.Context, filter ProjectFilter) ([]models.Project, int64, error)
	GetByID(ctx context.Context, id uint) (models.Project, error)
	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Project, error)
	CountAssigned(ctx context.Context, projectID uint) (int64, error)
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository instantiates a GORM-backed repository.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) List(ctx context.Context, filter ProjectFilter) ([]models.Project, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Project{})

	if filter.Search != "" {
		like := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	if filter.ProjectType != "" {
		query = query.Where("project_type = ?", filter.ProjectType)
	}

	if filter.FacultyID != nil {
		query = query.Where("faculty_id = ?", *filter.FacultyID)
	}

	if filter.Open != nil {
		query = query.Where("open = ?", *filter.Open)
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

	var projects []models.Project
	if err := query.Preload("Faculty").Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, 0, err
	}

	return projects, total, nil
}

func (r *projectRepository) GetByID(ctx context.Context, id uint) (models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Preload("Faculty").First(&project, id).Error; err != nil {
		return models.Project{}, err
	}

	return project, nil
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *projectRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Project, error) {
	result := r.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return models.Project{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Project{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}

// CountAssigned counts groups already approved onto the project; the decision
// flow compares it against the project capacity.
func (r *projectRepository) CountAssigned(ctx context.Context, projectID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Application{}).
		Where("assigned_project_id = ?", projectID).
		Where("status = ?", models.ApplicationStatusApproved).
		Count(&total).Error
	return total, err
}
