package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/models"
)

// WindowFilter narrows time window listings.
type WindowFilter struct {
	Kind           string
	ProjectType    string
	AssessmentType string
	Page           int
	PageSize       int
}

// WindowRepository defines persistence operations for time windows.
type WindowRepository interface {
	List(ctx context.Context, filter WindowFilter) ([]models.Window, int64, error)
	GetByID(ctx context.Context, id uint) (models.Window, error)
	Create(ctx context.Context, window *models.Window) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Window, error)
	Delete(ctx context.Context, id uint) error
	FindCovering(ctx context.Context, kind models.WindowKind, projectType models.ProjectType, assessmentType string, reference time.Time) ([]models.Window, error)
	ListActive(ctx context.Context, reference time.Time) ([]models.Window, error)
}

type windowRepository struct {
	db *gorm.DB
}

// NewWindowRepository instantiates a GORM-backed repository.
func NewWindowRepository(db *gorm.DB) WindowRepository {
	return &windowRepository{db: db}
}

func (r *windowRepository) List(ctx context.Context, filter WindowFilter) ([]models.Window, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Window{})

	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}

	if filter.ProjectType != "" {
		query = query.Where("project_type = ?", filter.ProjectType)
	}

	if filter.AssessmentType != "" {
		query = query.Where("assessment_type = ?", filter.AssessmentType)
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

	var windows []models.Window
	if err := query.Order("start_date ASC").Find(&windows).Error; err != nil {
		return nil, 0, err
	}

	return windows, total, nil
}

func (r *windowRepository) GetByID(ctx context.Context, id uint) (models.Window, error) {
	var window models.Window
	if err := r.db.WithContext(ctx).First(&window, id).Error; err != nil {
		return models.Window{}, err
	}

	return window, nil
}

func (r *windowRepository) Create(ctx context.Context, window *models.Window) error {
	return r.db.WithContext(ctx).Create(window).Error
}

func (r *windowRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Window, error) {
	result := r.db.WithContext(ctx).Model(&models.Window{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return models.Window{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Window{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *windowRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Window{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindCovering returns every window of the given kind whose inclusive
// [start_date, end_date] range contains the reference instant, newest end
// first so the caller can take the head as the winning window.
func (r *windowRepository) FindCovering(ctx context.Context, kind models.WindowKind, projectType models.ProjectType, assessmentType string, reference time.Time) ([]models.Window, error) {
	query := r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Where("project_type = ?", projectType).
		Where("start_date <= ?", reference).
		Where("end_date >= ?", reference)

	if assessmentType != "" {
		query = query.Where("assessment_type = ?", assessmentType)
	}

	var windows []models.Window
	if err := query.Order("end_date DESC").Order("start_date DESC").Find(&windows).Error; err != nil {
		return nil, err
	}

	return windows, nil
}

// ListActive returns every window open at the reference instant across all
// kinds and project types.
func (r *windowRepository) ListActive(ctx context.Context, reference time.Time) ([]models.Window, error) {
	var windows []models.Window
	err := r.db.WithContext(ctx).
		Where("start_date <= ?", reference).
		Where("end_date >= ?", reference).
		Order("end_date ASC").
		Find(&windows).Error
	if err != nil {
		return nil, err
	}

	return windows, nil
}
