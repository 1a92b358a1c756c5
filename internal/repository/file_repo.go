package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/models"
)

// FileRepository persists metadata about uploaded files.
type FileRepository interface {
	Create(ctx context.Context, record *models.FileObject) error
	GetByID(ctx context.Context, id uint) (models.FileObject, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]models.FileObject, error)
	ListByGroup(ctx context.Context, groupID uint) ([]models.FileObject, error)
	Delete(ctx context.Context, id uint) error
}

type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository constructs a repository for file metadata.
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, record *models.FileObject) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *fileRepository) GetByID(ctx context.Context, id uint) (models.FileObject, error) {
	var record models.FileObject
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return models.FileObject{}, err
	}
	return record, nil
}

func (r *fileRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.FileObject, error) {
	var records []models.FileObject
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *fileRepository) ListByGroup(ctx context.Context, groupID uint) ([]models.FileObject, error) {
	var records []models.FileObject
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *fileRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.FileObject{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
