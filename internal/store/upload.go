package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/retinalab/retina-dashboard/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Upload interface {
	Create(ctx context.Context, upload model.Upload) (*model.Upload, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Upload, error)
	List(ctx context.Context, filter *UploadQueryFilter, opts *QueryOptions) (model.UploadList, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// MarkProcessing moves a pending upload to processing. It reports false without error
	// when the upload is already processing.
	MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, qualityScore float64, features model.Features, at time.Time) error
	Fail(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	ListStuck(ctx context.Context, startedBefore time.Time) (model.UploadList, error)
}

type UploadStore struct {
	db *gorm.DB
}

// Make sure we conform to Upload interface
var _ Upload = (*UploadStore)(nil)

func NewUploadStore(db *gorm.DB) Upload {
	return &UploadStore{db: db}
}

func (u *UploadStore) Create(ctx context.Context, upload model.Upload) (*model.Upload, error) {
	if upload.ID == uuid.Nil {
		upload.ID = uuid.New()
	}
	if upload.Status == "" {
		upload.Status = model.StatusPending
	}

	result := u.getDB(ctx).Clauses(clause.Returning{}).Create(&upload)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return &upload, nil
}

func (u *UploadStore) Get(ctx context.Context, id uuid.UUID) (*model.Upload, error) {
	var upload model.Upload
	result := u.getDB(ctx).First(&upload, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &upload, nil
}

func (u *UploadStore) List(ctx context.Context, filter *UploadQueryFilter, opts *QueryOptions) (model.UploadList, error) {
	var uploads model.UploadList
	tx := u.getDB(ctx).Model(&uploads)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if opts == nil {
		opts = NewQueryOptions().WithSortOrder(SortByCreatedTime)
	}
	for _, fn := range opts.QueryFn {
		tx = fn(tx)
	}

	if result := tx.Find(&uploads); result.Error != nil {
		return nil, result.Error
	}
	return uploads, nil
}

func (u *UploadStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := u.getDB(ctx).Unscoped().Delete(&model.Upload{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (u *UploadStore) MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := u.getDB(ctx).Model(&model.Upload{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]any{
			"status":                model.StatusProcessing,
			"processing_started_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	current, err := u.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if current.Status == model.StatusProcessing {
		return false, nil
	}
	return false, ErrInvalidTransition
}

func (u *UploadStore) Complete(ctx context.Context, id uuid.UUID, qualityScore float64, features model.Features, at time.Time) error {
	return u.finalize(ctx, id, map[string]any{
		"status":             model.StatusCompleted,
		"quality_score":      qualityScore,
		"extracted_features": model.MakeJSONField(features),
		"processed_at":       at,
	})
}

func (u *UploadStore) Fail(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	return u.finalize(ctx, id, map[string]any{
		"status":         model.StatusFailed,
		"failure_reason": reason,
		"processed_at":   at,
	})
}

// finalize writes every terminal field in a single update conditioned on the upload
// still being processing.
func (u *UploadStore) finalize(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := u.getDB(ctx).Model(&model.Upload{}).
		Where("id = ? AND status = ?", id, model.StatusProcessing).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	if _, err := u.Get(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (u *UploadStore) ListStuck(ctx context.Context, startedBefore time.Time) (model.UploadList, error) {
	return u.List(ctx,
		NewUploadQueryFilter().ByStatus(model.StatusProcessing).StartedBefore(startedBefore),
		NewQueryOptions().WithSortOrder(SortByID),
	)
}

func (u *UploadStore) getDB(ctx context.Context) *gorm.DB {
	return getDB(ctx, u.db)
}
