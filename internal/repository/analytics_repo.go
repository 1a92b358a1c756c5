package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/models"
)

// AnalyticsRepository supplies aggregate counts for the dashboard.
type AnalyticsRepository interface {
	CountUsersByRole(ctx context.Context) (map[models.Role]int64, error)
	CountActiveGroups(ctx context.Context, projectType models.ProjectType) (int64, error)
	CountOpenProjects(ctx context.Context, projectType models.ProjectType) (int64, error)
	CountUnassignedStudents(ctx context.Context, projectType models.ProjectType) (int64, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository constructs the analytics repository.
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) CountUsersByRole(ctx context.Context) (map[models.Role]int64, error) {
	type row struct {
		Role  models.Role
		Total int64
	}

	var rows []row
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("status = ?", models.UserStatusActive).
		Select("role, COUNT(*) AS total").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.Role]int64, len(rows))
	for _, r := range rows {
		counts[r.Role] = r.Total
	}

	return counts, nil
}

func (r *analyticsRepository) CountActiveGroups(ctx context.Context, projectType models.ProjectType) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Group{}).
		Where("status = ?", models.GroupStatusActive)
	if projectType != "" {
		query = query.Where("project_type = ?", projectType)
	}

	var total int64
	err := query.Count(&total).Error
	return total, err
}

func (r *analyticsRepository) CountOpenProjects(ctx context.Context, projectType models.ProjectType) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Project{}).
		Where("open = ?", true)
	if projectType != "" {
		query = query.Where("project_type = ?", projectType)
	}

	var total int64
	err := query.Count(&total).Error
	return total, err
}

// CountUnassignedStudents counts active students eligible for the project
// type who are not yet in any active group of that type.
func (r *analyticsRepository) CountUnassignedStudents(ctx context.Context, projectType models.ProjectType) (int64, error) {
	sub := r.db.Model(&models.GroupMember{}).
		Select("group_members.student_id").
		Joins("JOIN groups ON groups.id = group_members.group_id").
		Where("groups.status = ?", models.GroupStatusActive).
		Where("groups.project_type = ?", projectType)

	var total int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", models.RoleStudent).
		Where("status = ?", models.UserStatusActive).
		Where("eligibility = ?", projectType).
		Where("id NOT IN (?)", sub).
		Count(&total).Error
	return total, err
}
