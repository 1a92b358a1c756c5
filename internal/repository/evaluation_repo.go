package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/models"
)

// EvaluationFilter narrows evaluation listings.
type EvaluationFilter struct {
	ProjectType string
	GroupID     *uint
	Finalized   *bool
	Page        int
	PageSize    int
}

// EvaluationRepository defines persistence operations for evaluations.
type EvaluationRepository interface {
	List(ctx context.Context, filter EvaluationFilter) ([]models.Evaluation, int64, error)
	GetByID(ctx context.Context, id uint) (models.Evaluation, error)
	GetByStudent(ctx context.Context, studentID uint, projectType models.ProjectType) (models.Evaluation, error)
	ListByGroup(ctx context.Context, groupID uint, projectType models.ProjectType) ([]models.Evaluation, error)
	Create(ctx context.Context, evaluation *models.Evaluation) error
	UpdateScored(ctx context.Context, id uint, policy RetryPolicy, recompute func(models.Evaluation) (map[string]interface{}, error)) (models.Evaluation, error)
	CountFinalized(ctx context.Context, projectType models.ProjectType) (int64, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository instantiates a GORM-backed repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) List(ctx context.Context, filter EvaluationFilter) ([]models.Evaluation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Evaluation{})

	if filter.ProjectType != "" {
		query = query.Where("project_type = ?", filter.ProjectType)
	}

	if filter.GroupID != nil {
		query = query.Where("group_id = ?", *filter.GroupID)
	}

	if filter.Finalized != nil {
		query = query.Where("finalized = ?", *filter.Finalized)
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

	var evaluations []models.Evaluation
	if err := query.Preload("Student").Order("updated_at DESC").Find(&evaluations).Error; err != nil {
		return nil, 0, err
	}

	return evaluations, total, nil
}

func (r *evaluationRepository) GetByID(ctx context.Context, id uint) (models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.db.WithContext(ctx).Preload("Student").First(&evaluation, id).Error; err != nil {
		return models.Evaluation{}, err
	}

	return evaluation, nil
}

func (r *evaluationRepository) GetByStudent(ctx context.Context, studentID uint, projectType models.ProjectType) (models.Evaluation, error) {
	var evaluation models.Evaluation
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("project_type = ?", projectType).
		Preload("Student").
		First(&evaluation).Error
	if err != nil {
		return models.Evaluation{}, err
	}

	return evaluation, nil
}

func (r *evaluationRepository) ListByGroup(ctx context.Context, groupID uint, projectType models.ProjectType) ([]models.Evaluation, error) {
	var evaluations []models.Evaluation
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Where("project_type = ?", projectType).
		Preload("Student").
		Order("student_id ASC").
		Find(&evaluations).Error
	if err != nil {
		return nil, err
	}

	return evaluations, nil
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

// UpdateScored runs the version-guarded score write. recompute sees the
// freshly loaded row and returns the column patch; conflicts are retried per
// the policy.
func (r *evaluationRepository) UpdateScored(ctx context.Context, id uint, policy RetryPolicy, recompute func(models.Evaluation) (map[string]interface{}, error)) (models.Evaluation, error) {
	if _, err := UpdateWithRetry(ctx, r.db, policy, id, recompute); err != nil {
		return models.Evaluation{}, err
	}

	return r.GetByID(ctx, id)
}

func (r *evaluationRepository) CountFinalized(ctx context.Context, projectType models.ProjectType) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Evaluation{}).Where("finalized = ?", true)
	if projectType != "" {
		query = query.Where("project_type = ?", projectType)
	}

	var total int64
	err := query.Count(&total).Error
	return total, err
}
