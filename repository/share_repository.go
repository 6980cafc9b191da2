package repository

import (
	"context"

	"tunevault/core/apperr"
	"tunevault/model"

	"gorm.io/gorm"
)

// ShareRepository stores share links.
type ShareRepository interface {
	Create(ctx context.Context, link *model.ShareLink) error
	GetByID(ctx context.Context, id string) (*model.ShareLink, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]model.ShareLink, error)
	Delete(ctx context.Context, id string, ownerID int64) error
	IncrementAccess(ctx context.Context, id string) error
}

type gormShareRepository struct {
	db *gorm.DB
}

// NewGormShareRepository creates a gorm-backed ShareRepository.
func NewGormShareRepository(db *gorm.DB) ShareRepository {
	return &gormShareRepository{db: db}
}

func (r *gormShareRepository) Create(ctx context.Context, link *model.ShareLink) error {
	return translate(r.db.WithContext(ctx).Create(link).Error)
}

func (r *gormShareRepository) GetByID(ctx context.Context, id string) (*model.ShareLink, error) {
	var link model.ShareLink
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

func (r *gormShareRepository) ListByOwner(ctx context.Context, ownerID int64) ([]model.ShareLink, error) {
	links := []model.ShareLink{}
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		return nil, translate(err)
	}
	return links, nil
}

func (r *gormShareRepository) Delete(ctx context.Context, id string, ownerID int64) error {
	res := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.ShareLink{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// IncrementAccess bumps the access counter in a single statement.
func (r *gormShareRepository) IncrementAccess(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&model.ShareLink{}).
		Where("id = ?", id).
		UpdateColumn("access_count", gorm.Expr("access_count + ?", 1))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
