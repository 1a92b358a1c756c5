package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/models"
)

// CourseFilter narrows course listings.
type CourseFilter struct {
	Search   string
	Semester int
	Page     int
	PageSize int
}

// CourseRepository defines persistence operations for courses and their
// cohorts.
type CourseRepository interface {
	List(ctx context.Context, filter CourseFilter) ([]models.Course, int64, error)
	GetByID(ctx context.Context, id uint) (models.Course, error)
	GetByCode(ctx context.Context, code string) (models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Course, error)
	Delete(ctx context.Context, id uint) error

	CreateCohort(ctx context.Context, cohort *models.Cohort) error
	GetCohortByID(ctx context.Context, id uint) (models.Cohort, error)
	UpdateCohort(ctx context.Context, id uint, updates map[string]interface{}) (models.Cohort, error)
	DeleteCohort(ctx context.Context, id uint) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates a GORM-backed repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) List(ctx context.Context, filter CourseFilter) ([]models.Course, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{})

	if filter.Search != "" {
		like := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(code) LIKE ? OR LOWER(title) LIKE ?", like, like)
	}

	if filter.Semester > 0 {
		query = query.Where("semester = ?", filter.Semester)
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

	var courses []models.Course
	if err := query.Preload("Cohorts").Order("code ASC").Find(&courses).Error; err != nil {
		return nil, 0, err
	}

	return courses, total, nil
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Preload("Cohorts").First(&course, id).Error; err != nil {
		return models.Course{}, err
	}

	return course, nil
}

func (r *courseRepository) GetByCode(ctx context.Context, code string) (models.Course, error) {
	var course models.Course
	query := r.db.WithContext(ctx).Where("LOWER(code) = ?", strings.ToLower(strings.TrimSpace(code)))
	if err := query.Preload("Cohorts").First(&course).Error; err != nil {
		return models.Course{}, err
	}

	return course, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Course, error) {
	result := r.db.WithContext(ctx).Model(&models.Course{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return models.Course{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Course{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *courseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", id).Delete(&models.Cohort{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Course{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *courseRepository) CreateCohort(ctx context.Context, cohort *models.Cohort) error {
	return r.db.WithContext(ctx).Create(cohort).Error
}

func (r *courseRepository) GetCohortByID(ctx context.Context, id uint) (models.Cohort, error) {
	var cohort models.Cohort
	if err := r.db.WithContext(ctx).First(&cohort, id).Error; err != nil {
		return models.Cohort{}, err
	}

	return cohort, nil
}

func (r *courseRepository) UpdateCohort(ctx context.Context, id uint, updates map[string]interface{}) (models.Cohort, error) {
	result := r.db.WithContext(ctx).Model(&models.Cohort{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return models.Cohort{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Cohort{}, gorm.ErrRecordNotFound
	}

	return r.GetCohortByID(ctx, id)
}

func (r *courseRepository) DeleteCohort(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Cohort{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
