package store

import (
	"time"

	"github.com/retinalab/retina-dashboard/internal/store/model"
	"gorm.io/gorm"
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type SortOrder int

const (
	SortByCreatedTime SortOrder = iota
	SortByID
)

type UploadQueryFilter BaseQuerier

func NewUploadQueryFilter() *UploadQueryFilter {
	return &UploadQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (qf *UploadQueryFilter) ByOwner(ownerID string) *UploadQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("owner_id = ?", ownerID)
	})
	return qf
}

func (qf *UploadQueryFilter) ByModality(modality model.Modality) *UploadQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("modality = ?", modality)
	})
	return qf
}

func (qf *UploadQueryFilter) ByStatus(status model.ProcessingStatus) *UploadQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ?", status)
	})
	return qf
}

func (qf *UploadQueryFilter) ByArtifactURL(url string) *UploadQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("artifact_url = ?", url)
	})
	return qf
}

// StartedBefore matches uploads whose processing started before t.
func (qf *UploadQueryFilter) StartedBefore(t time.Time) *UploadQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("processing_started_at < ?", t)
	})
	return qf
}

type AnalysisQueryFilter BaseQuerier

func NewAnalysisQueryFilter() *AnalysisQueryFilter {
	return &AnalysisQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (qf *AnalysisQueryFilter) ByOwner(ownerID string) *AnalysisQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("owner_id = ?", ownerID)
	})
	return qf
}

func (qf *AnalysisQueryFilter) ByStatus(status model.ProcessingStatus) *AnalysisQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ?", status)
	})
	return qf
}

func (qf *AnalysisQueryFilter) CreatedBefore(t time.Time) *AnalysisQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("created_at < ?", t)
	})
	return qf
}

type QueryOptions BaseQuerier

func NewQueryOptions() *QueryOptions {
	return &QueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (o *QueryOptions) WithSortOrder(sort SortOrder) *QueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		switch sort {
		case SortByID:
			return tx.Order("id")
		case SortByCreatedTime:
			return tx.Order("created_at DESC")
		default:
			return tx
		}
	})
	return o
}

func (o *QueryOptions) WithLimit(limit int) *QueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	})
	return o
}
