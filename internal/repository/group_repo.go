package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/models"
)

// GroupFilter narrows group listings.
type GroupFilter struct {
	Search      string
	ProjectType string
	Status      string
	Page        int
	PageSize    int
}

// GroupRepository defines persistence operations for student groups.
type GroupRepository interface {
	List(ctx context.Context, filter GroupFilter) ([]models.Group, int64, error)
	GetByID(ctx context.Context, id uint) (models.Group, error)
	GetByMember(ctx context.Context, studentID uint, projectType models.ProjectType) (models.Group, error)
	CreateWithLeader(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Group, error)
	AddMember(ctx context.Context, member *models.GroupMember) error
	RemoveMember(ctx context.Context, groupID, studentID uint) error
	CountMembers(ctx context.Context, groupID uint) (int64, error)
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository instantiates a GORM-backed repository.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) List(ctx context.Context, filter GroupFilter) ([]models.Group, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Group{})

	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ?", like)
	}

	if filter.ProjectType != "" {
		query = query.Where("project_type = ?", filter.ProjectType)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
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

	var groups []models.Group
	if err := query.Preload("Members").Order("created_at DESC").Find(&groups).Error; err != nil {
		return nil, 0, err
	}

	return groups, total, nil
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Members.Student").
		First(&group, id).Error
	if err != nil {
		return models.Group{}, err
	}

	return group, nil
}

// GetByMember resolves the active group a student belongs to for one project
// type. A student can belong to at most one such group at a time.
func (r *groupRepository) GetByMember(ctx context.Context, studentID uint, projectType models.ProjectType) (models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.student_id = ?", studentID).
		Where("groups.project_type = ?", projectType).
		Where("groups.status = ?", models.GroupStatusActive).
		Preload("Members").
		First(&group).Error
	if err != nil {
		return models.Group{}, err
	}

	return group, nil
}

// CreateWithLeader persists the group and enrols the leader as its first
// member in one transaction.
func (r *groupRepository) CreateWithLeader(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}

		member := models.GroupMember{
			GroupID:   group.ID,
			StudentID: group.LeaderID,
			Role:      models.GroupRoleLeader,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}

		group.Members = append(group.Members, member)
		return nil
	})
}

func (r *groupRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Group, error) {
	result := r.db.WithContext(ctx).Model(&models.Group{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return models.Group{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Group{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *groupRepository) AddMember(ctx context.Context, member *models.GroupMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *groupRepository) RemoveMember(ctx context.Context, groupID, studentID uint) error {
	result := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Where("student_id = ?", studentID).
		Delete(&models.GroupMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *groupRepository) CountMembers(ctx context.Context, groupID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Count(&total).Error
	return total, err
}
