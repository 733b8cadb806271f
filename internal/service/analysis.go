package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/retinalab/retina-dashboard/internal/audit"
	"github.com/retinalab/retina-dashboard/internal/processing"
	"github.com/retinalab/retina-dashboard/internal/store"
	"github.com/retinalab/retina-dashboard/internal/store/model"
	"go.uber.org/zap"
)

type AnalysisService struct {
	store    store.Store
	engine   Engine
	recorder Recorder
	reports  *ReportService
	log      *zap.SugaredLogger
}

func NewAnalysisService(s store.Store, engine Engine, recorder Recorder, reports *ReportService) *AnalysisService {
	return &AnalysisService{
		store:    s,
		engine:   engine,
		recorder: recorder,
		reports:  reports,
		log:      zap.S().Named("analysis_service"),
	}
}

// Start creates a multimodal analysis over a completed fundus record and a completed
// ERG record, both owned by ownerID.
func (as *AnalysisService) Start(ctx context.Context, ownerID string, fundusID, ergID uuid.UUID) (*model.Analysis, error) {
	analysis, _, err := as.engine.StartAnalysis(ctx, ownerID, fundusID, ergID)
	if err != nil {
		switch {
		case errors.Is(err, processing.ErrInputsNotReady):
			return nil, NewErrRecordNotReady()
		case errors.Is(err, processing.ErrNotSchedulable):
			return nil, NewErrServiceUnavailable(err)
		default:
			return nil, fmt.Errorf("failed to start analysis: %w", err)
		}
	}

	as.recorder.Record(ctx, audit.Event{
		UserID:       ownerID,
		Action:       audit.StartAIAnalysis,
		ResourceType: audit.ResourceAnalysis,
		ResourceID:   analysis.ID.String(),
		Metadata: map[string]any{
			"fundus_record_id": fundusID.String(),
			"erg_record_id":    ergID.String(),
		},
	})
	return analysis, nil
}

func (as *AnalysisService) List(ctx context.Context, ownerID string, status string) (model.AnalysisList, error) {
	filter := store.NewAnalysisQueryFilter().ByOwner(ownerID)
	if status != "" {
		s := model.ProcessingStatus(status)
		if !s.Valid() {
			return nil, NewErrInvalidInput(fmt.Sprintf("unknown status %q", status))
		}
		filter = filter.ByStatus(s)
	}

	analyses, err := as.store.Analysis().List(ctx, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, nil
}

func (as *AnalysisService) Get(ctx context.Context, ownerID string, id uuid.UUID) (*model.Analysis, error) {
	analysis, err := as.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	as.recorder.Record(ctx, audit.Event{
		UserID:       ownerID,
		Action:       audit.ViewAnalysisResult,
		ResourceType: audit.ResourceAnalysis,
		ResourceID:   id.String(),
	})
	return analysis, nil
}

// Report is a rendered analysis report ready to be downloaded.
type Report struct {
	FileName    string
	ContentType string
	Content     string
}

func (as *AnalysisService) Report(ctx context.Context, ownerID string, id uuid.UUID, format ReportFormat) (*Report, error) {
	analysis, err := as.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	// inputs deleted after the analysis ran are reported as missing
	fundus := as.input(ctx, ownerID, analysis.FundusRecordID)
	erg := as.input(ctx, ownerID, analysis.ErgRecordID)

	content, contentType, err := as.reports.GenerateReport(analysis, fundus, erg, format)
	if err != nil {
		if errors.Is(err, ErrUnsupportedReportFormat) {
			return nil, NewErrInvalidInput(err.Error())
		}
		return nil, err
	}

	as.recorder.Record(ctx, audit.Event{
		UserID:       ownerID,
		Action:       audit.DownloadReport,
		ResourceType: audit.ResourceAnalysis,
		ResourceID:   id.String(),
		Metadata:     map[string]any{"format": string(format)},
	})

	return &Report{
		FileName:    fmt.Sprintf("analysis-%s.%s", id, format),
		ContentType: contentType,
		Content:     content,
	}, nil
}

// Export is everything stored about a user.
type Export struct {
	Fundus   model.UploadList   `json:"fundus"`
	Erg      model.UploadList   `json:"erg"`
	Analyses model.AnalysisList `json:"analyses"`
}

func (as *AnalysisService) Export(ctx context.Context, ownerID string) (*Export, error) {
	var export Export

	err := as.store.Snapshot(ctx, func(ctx context.Context) error {
		var err error
		export.Fundus, err = as.store.Upload().List(ctx, store.NewUploadQueryFilter().ByOwner(ownerID).ByModality(model.ModalityFundus), nil)
		if err != nil {
			return fmt.Errorf("failed to export fundus records: %w", err)
		}
		export.Erg, err = as.store.Upload().List(ctx, store.NewUploadQueryFilter().ByOwner(ownerID).ByModality(model.ModalityErg), nil)
		if err != nil {
			return fmt.Errorf("failed to export erg records: %w", err)
		}
		export.Analyses, err = as.store.Analysis().List(ctx, store.NewAnalysisQueryFilter().ByOwner(ownerID), nil)
		if err != nil {
			return fmt.Errorf("failed to export analyses: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	as.recorder.Record(ctx, audit.Event{
		UserID: ownerID,
		Action: audit.ExportData,
		Metadata: map[string]any{
			"fundus":   len(export.Fundus),
			"erg":      len(export.Erg),
			"analyses": len(export.Analyses),
		},
	})
	return &export, nil
}

func (as *AnalysisService) owned(ctx context.Context, ownerID string, id uuid.UUID) (*model.Analysis, error) {
	analysis, err := as.store.Analysis().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrAnalysisNotFound(id)
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	if analysis.OwnerID != ownerID {
		return nil, NewErrAnalysisNotFound(id)
	}
	return analysis, nil
}

func (as *AnalysisService) input(ctx context.Context, ownerID string, id uuid.UUID) *model.Upload {
	upload, err := as.store.Upload().Get(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			as.log.Warnw("failed to load analysis input", "record_id", id, "error", err)
		}
		return nil
	}
	if upload.OwnerID != ownerID {
		return nil
	}
	return upload
}
