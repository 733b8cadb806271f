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

type Analysis interface {
	Create(ctx context.Context, analysis model.Analysis) (*model.Analysis, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Analysis, error)
	List(ctx context.Context, filter *AnalysisQueryFilter, opts *QueryOptions) (model.AnalysisList, error)
	Complete(ctx context.Context, id uuid.UUID, result model.AnalysisResult) error
	Fail(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	ListStuck(ctx context.Context, createdBefore time.Time) (model.AnalysisList, error)
}

type AnalysisStore struct {
	db *gorm.DB
}

// Make sure we conform to Analysis interface
var _ Analysis = (*AnalysisStore)(nil)

func NewAnalysisStore(db *gorm.DB) Analysis {
	return &AnalysisStore{db: db}
}

// Create inserts the analysis in processing state.
func (a *AnalysisStore) Create(ctx context.Context, analysis model.Analysis) (*model.Analysis, error) {
	if analysis.ID == uuid.Nil {
		analysis.ID = uuid.New()
	}
	analysis.Status = model.StatusProcessing

	result := a.getDB(ctx).Clauses(clause.Returning{}).Create(&analysis)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return &analysis, nil
}

func (a *AnalysisStore) Get(ctx context.Context, id uuid.UUID) (*model.Analysis, error) {
	var analysis model.Analysis
	result := a.getDB(ctx).First(&analysis, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &analysis, nil
}

func (a *AnalysisStore) List(ctx context.Context, filter *AnalysisQueryFilter, opts *QueryOptions) (model.AnalysisList, error) {
	var analyses model.AnalysisList
	tx := a.getDB(ctx).Model(&analyses)

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

	if result := tx.Find(&analyses); result.Error != nil {
		return nil, result.Error
	}
	return analyses, nil
}

func (a *AnalysisStore) Complete(ctx context.Context, id uuid.UUID, result model.AnalysisResult) error {
	return a.finalize(ctx, id, map[string]any{
		"status":               model.StatusCompleted,
		"fundus_confidence":    result.FundusConfidence,
		"erg_confidence":       result.ErgConfidence,
		"combined_confidence":  result.CombinedConfidence,
		"color_blindness_type": result.ColorBlindnessType,
		"severity_level":       result.SeverityLevel,
		"analysis_details":     model.MakeJSONField(result.Details),
		"completed_at":         result.CompletedAt,
	})
}

func (a *AnalysisStore) Fail(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	return a.finalize(ctx, id, map[string]any{
		"status":         model.StatusFailed,
		"failure_reason": reason,
		"completed_at":   at,
	})
}

func (a *AnalysisStore) finalize(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := a.getDB(ctx).Model(&model.Analysis{}).
		Where("id = ? AND status = ?", id, model.StatusProcessing).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	if _, err := a.Get(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (a *AnalysisStore) ListStuck(ctx context.Context, createdBefore time.Time) (model.AnalysisList, error) {
	return a.List(ctx,
		NewAnalysisQueryFilter().ByStatus(model.StatusProcessing).CreatedBefore(createdBefore),
		NewQueryOptions().WithSortOrder(SortByID),
	)
}

func (a *AnalysisStore) getDB(ctx context.Context) *gorm.DB {
	return getDB(ctx, a.db)
}
