package repository

import (
	"context"
	"fmt"

	"tunevault/core/apperr"
	"tunevault/model"

	"gorm.io/gorm"
)

// ValueCount is one grouped value with its occurrence count.
type ValueCount struct {
	Value string `gorm:"column:suggestion"`
	Count int64  `gorm:"column:occurrences"`
}

// RecordRepository is the catalog record store. Every read and write is owner-scoped.
type RecordRepository interface {
	Create(ctx context.Context, rec *model.Record) error
	GetByID(ctx context.Context, id, ownerID int64) (*model.Record, error)
	// GetAnyOwner loads a record without the owner predicate (share links only).
	GetAnyOwner(ctx context.Context, id int64) (*model.Record, error)
	ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]model.Record, int64, error)
	Update(ctx context.Context, id, ownerID int64, updates map[string]interface{}) error
	SetCoverArt(ctx context.Context, id, ownerID int64, ref *string) error
	Delete(ctx context.Context, id, ownerID int64) error

	// Queries and aggregates.
	Search(ctx context.Context, q Query) ([]model.Record, int64, error)
	Distinct(ctx context.Context, ownerID int64, field Field) ([]string, error)
	MinMax(ctx context.Context, ownerID int64, field Field, positiveOnly bool) (min, max *float64, err error)
	GroupCount(ctx context.Context, ownerID int64, field Field, partial string, limit int) ([]ValueCount, error)

	// ArtifactRefs returns every audio and cover ref currently referenced.
	ArtifactRefs(ctx context.Context) (map[string]struct{}, error)
}

// gormRecordRepository is the gorm implementation.
type gormRecordRepository struct {
	db       *gorm.DB
	fullText bool
}

// NewGormRecordRepository creates a record repository. With fullText false
// free-text search degrades to substring matching.
func NewGormRecordRepository(db *gorm.DB, fullText bool) RecordRepository {
	return &gormRecordRepository{db: db, fullText: fullText}
}

func (r *gormRecordRepository) Create(ctx context.Context, rec *model.Record) error {
	if rec.Composers == nil {
		rec.Composers = model.StringList{}
	}
	return translate(r.db.WithContext(ctx).Create(rec).Error)
}

func (r *gormRecordRepository) GetByID(ctx context.Context, id, ownerID int64) (*model.Record, error) {
	var rec model.Record
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (r *gormRecordRepository) GetAnyOwner(ctx context.Context, id int64) (*model.Record, error) {
	var rec model.Record
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (r *gormRecordRepository) ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]model.Record, int64, error) {
	return r.Search(ctx, Query{
		OwnerID: ownerID,
		Sort:    Sort{Field: FieldCreatedAt, Desc: true},
		Offset:  offset,
		Limit:   limit,
	})
}

// Update applies column updates to one owned row. owner_id is never written.
func (r *gormRecordRepository) Update(ctx context.Context, id, ownerID int64, updates map[string]interface{}) error {
	delete(updates, "owner_id")
	if len(updates) == 0 {
		_, err := r.GetByID(ctx, id, ownerID)
		return err
	}
	res := r.db.WithContext(ctx).Model(&model.Record{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *gormRecordRepository) SetCoverArt(ctx context.Context, id, ownerID int64, ref *string) error {
	return r.Update(ctx, id, ownerID, map[string]interface{}{"cover_art_path": ref})
}

// Delete removes the record and its share links.
func (r *gormRecordRepository) Delete(ctx context.Context, id, ownerID int64) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.Record{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return tx.Where("record_id = ?", id).Delete(&model.ShareLink{}).Error
	}))
}

// Search runs the count and the page fetch as two independent statements.
func (r *gormRecordRepository) Search(ctx context.Context, q Query) ([]model.Record, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Record{}).
		Scopes(filterScope(q, r.fullText)).
		Count(&total).Error
	if err != nil {
		return nil, 0, translate(fmt.Errorf("count records: %w", err))
	}

	records := make([]model.Record, 0, q.Limit)
	if total == 0 {
		return records, 0, nil
	}
	err = r.searchStatement(r.db.WithContext(ctx), q).Find(&records).Error
	if err != nil {
		return nil, 0, translate(fmt.Errorf("fetch records: %w", err))
	}
	return records, total, nil
}

func (r *gormRecordRepository) searchStatement(tx *gorm.DB, q Query) *gorm.DB {
	tx = tx.Model(&model.Record{}).
		Scopes(filterScope(q, r.fullText), orderScope(q, r.fullText))
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	return tx
}

// Distinct lists the non-empty values of a column, ascending.
func (r *gormRecordRepository) Distinct(ctx context.Context, ownerID int64, field Field) ([]string, error) {
	values := []string{}
	err := r.distinctStatement(r.db.WithContext(ctx), ownerID, field).Pluck(field.column(), &values).Error
	if err != nil {
		return nil, translate(err)
	}
	return values, nil
}

func (r *gormRecordRepository) distinctStatement(tx *gorm.DB, ownerID int64, field Field) *gorm.DB {
	col := field.column()
	return tx.Model(&model.Record{}).
		Distinct(col).
		Where("owner_id = ?", ownerID).
		Where(col + " IS NOT NULL AND " + col + " <> ''").
		Order(col + " ASC")
}

type minMaxRow struct {
	MinValue *float64
	MaxValue *float64
}

// MinMax aggregates over non-null values. positiveOnly also skips values <= 0.
func (r *gormRecordRepository) MinMax(ctx context.Context, ownerID int64, field Field, positiveOnly bool) (*float64, *float64, error) {
	var row minMaxRow
	err := r.minMaxStatement(r.db.WithContext(ctx), ownerID, field, positiveOnly).Scan(&row).Error
	if err != nil {
		return nil, nil, translate(err)
	}
	return row.MinValue, row.MaxValue, nil
}

func (r *gormRecordRepository) minMaxStatement(tx *gorm.DB, ownerID int64, field Field, positiveOnly bool) *gorm.DB {
	col := field.column()
	tx = tx.Model(&model.Record{}).
		Select("MIN("+col+") AS min_value, MAX("+col+") AS max_value").
		Where("owner_id = ?", ownerID).
		Where(col + " IS NOT NULL")
	if positiveOnly {
		tx = tx.Where(col + " > 0")
	}
	return tx
}

// GroupCount counts distinct values containing partial, most frequent first.
func (r *gormRecordRepository) GroupCount(ctx context.Context, ownerID int64, field Field, partial string, limit int) ([]ValueCount, error) {
	rows := []ValueCount{}
	err := r.groupCountStatement(r.db.WithContext(ctx), ownerID, field, partial, limit).Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (r *gormRecordRepository) groupCountStatement(tx *gorm.DB, ownerID int64, field Field, partial string, limit int) *gorm.DB {
	col := field.column()
	return tx.Model(&model.Record{}).
		Select(col+" AS suggestion, COUNT(*) AS occurrences").
		Where("owner_id = ?", ownerID).
		Where("LOWER("+col+") LIKE ?", likePattern(partial)).
		Group(col).
		Order("occurrences DESC, suggestion ASC").
		Limit(limit)
}

func (r *gormRecordRepository) ArtifactRefs(ctx context.Context) (map[string]struct{}, error) {
	refs := make(map[string]struct{})
	var batch []model.Record
	err := r.db.WithContext(ctx).
		Select("id", "file_path", "cover_art_path").
		FindInBatches(&batch, 1000, func(tx *gorm.DB, _ int) error {
			for _, rec := range batch {
				refs[rec.FilePath] = struct{}{}
				if rec.HasCoverArt() {
					refs[*rec.CoverArtPath] = struct{}{}
				}
			}
			return nil
		}).Error
	if err != nil {
		return nil, translate(err)
	}
	return refs, nil
}
