package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/retinalab/retina-dashboard/internal/artifact"
	"github.com/retinalab/retina-dashboard/internal/audit"
	"github.com/retinalab/retina-dashboard/internal/processing"
	"github.com/retinalab/retina-dashboard/internal/store"
	"github.com/retinalab/retina-dashboard/internal/store/model"
	"github.com/thoas/go-funk"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	MaxFundusSize int64 = 10 << 20
	MaxErgSize    int64 = 50 << 20
)

var ergExtensions = []string{".csv", ".xlsx", ".xls", ".txt"}

// Engine starts asynchronous processing.
type Engine interface {
	StartUpload(ctx context.Context, ownerID string, modality model.Modality, recordID uuid.UUID) (processing.Ack, error)
	StartAnalysis(ctx context.Context, ownerID string, fundusID, ergID uuid.UUID) (*model.Analysis, processing.Ack, error)
}

type Recorder interface {
	Record(ctx context.Context, e audit.Event)
}

// FileUpload is a file received from a client.
type FileUpload struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

type UploadService struct {
	store     store.Store
	artifacts artifact.Store
	engine    Engine
	recorder  Recorder
	log       *zap.SugaredLogger
}

func NewUploadService(s store.Store, artifacts artifact.Store, engine Engine, recorder Recorder) *UploadService {
	return &UploadService{
		store:     s,
		artifacts: artifacts,
		engine:    engine,
		recorder:  recorder,
		log:       zap.S().Named("upload_service"),
	}
}

// Upload validates the file, stores it and creates a pending record.
func (us *UploadService) Upload(ctx context.Context, ownerID string, modality model.Modality, file FileUpload) (*model.Upload, error) {
	content, err := validateFile(modality, file)
	if err != nil {
		return nil, err
	}

	url, err := us.artifacts.Put(ctx, artifact.Object{
		OwnerID:     ownerID,
		Modality:    string(modality),
		FileName:    file.FileName,
		ContentType: file.ContentType,
		Size:        int64(len(content)),
		Body:        bytes.NewReader(content),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store %s file: %w", modality, err)
	}

	upload, err := us.store.Upload().Create(ctx, model.Upload{
		OwnerID:     ownerID,
		Modality:    modality,
		FileName:    file.FileName,
		ContentType: file.ContentType,
		Size:        int64(len(content)),
		ArtifactURL: url,
	})
	if err != nil {
		if derr := us.artifacts.Delete(ctx, url); derr != nil {
			us.log.Warnw("failed to remove orphaned artifact", "url", url, "error", derr)
		}
		return nil, fmt.Errorf("failed to create %s record: %w", modality, err)
	}

	us.recorder.Record(ctx, audit.Event{
		UserID:       ownerID,
		Action:       uploadAction(modality),
		ResourceType: resourceType(modality),
		ResourceID:   upload.ID.String(),
		Metadata: map[string]any{
			"file_name": upload.FileName,
			"size":      upload.Size,
		},
	})

	us.log.Infow("file uploaded", "record_id", upload.ID, "modality", modality, "size", upload.Size)
	return upload, nil
}

// Process starts processing of a pending record. Started is false when it was already running.
func (us *UploadService) Process(ctx context.Context, ownerID string, modality model.Modality, id uuid.UUID) (processing.Ack, error) {
	ack, err := us.engine.StartUpload(ctx, ownerID, modality, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			return processing.Ack{}, NewErrUploadNotFound(id)
		case errors.Is(err, store.ErrInvalidTransition):
			return processing.Ack{}, NewErrProcessingConflict(id)
		case errors.Is(err, processing.ErrNotSchedulable):
			return processing.Ack{}, NewErrServiceUnavailable(err)
		default:
			return processing.Ack{}, fmt.Errorf("failed to start processing: %w", err)
		}
	}
	return ack, nil
}

func (us *UploadService) List(ctx context.Context, ownerID string, modality model.Modality, status string) (model.UploadList, error) {
	filter := store.NewUploadQueryFilter().ByOwner(ownerID).ByModality(modality)
	if status != "" {
		s := model.ProcessingStatus(status)
		if !s.Valid() {
			return nil, NewErrInvalidInput(fmt.Sprintf("unknown status %q", status))
		}
		filter = filter.ByStatus(s)
	}

	uploads, err := us.store.Upload().List(ctx, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return uploads, nil
}

func (us *UploadService) Get(ctx context.Context, ownerID string, modality model.Modality, id uuid.UUID) (*model.Upload, error) {
	upload, err := us.owned(ctx, ownerID, modality, id)
	if err != nil {
		return nil, err
	}

	us.recorder.Record(ctx, audit.Event{
		UserID:       ownerID,
		Action:       viewAction(modality),
		ResourceType: resourceType(modality),
		ResourceID:   id.String(),
	})
	return upload, nil
}

// DeleteForm names the record to delete by id or by artifact url.
type DeleteForm struct {
	RecordID *uuid.UUID
	URL      string
}

// Delete removes the record and then its artifact. A failure to remove the artifact
// is logged and does not fail the call.
func (us *UploadService) Delete(ctx context.Context, ownerID string, modality model.Modality, form DeleteForm) error {
	upload, err := us.resolve(ctx, ownerID, modality, form)
	if err != nil {
		return err
	}

	if err := us.store.Upload().Delete(ctx, upload.ID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrUploadNotFound(upload.ID)
		}
		return fmt.Errorf("failed to delete record: %w", err)
	}

	if err := us.artifacts.Delete(ctx, upload.ArtifactURL); err != nil {
		us.log.Warnw("failed to delete artifact", "record_id", upload.ID, "url", upload.ArtifactURL, "error", err)
	}

	us.recorder.Record(ctx, audit.Event{
		UserID:       ownerID,
		Action:       deleteAction(modality),
		ResourceType: resourceType(modality),
		ResourceID:   upload.ID.String(),
		Metadata:     map[string]any{"file_name": upload.FileName},
	})
	return nil
}

func (us *UploadService) resolve(ctx context.Context, ownerID string, modality model.Modality, form DeleteForm) (*model.Upload, error) {
	if form.RecordID != nil {
		return us.owned(ctx, ownerID, modality, *form.RecordID)
	}
	if form.URL == "" {
		return nil, NewErrInvalidInput("either recordId or url is required")
	}

	uploads, err := us.store.Upload().List(ctx,
		store.NewUploadQueryFilter().ByOwner(ownerID).ByModality(modality).ByArtifactURL(form.URL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to look up record: %w", err)
	}
	if len(uploads) == 0 {
		return nil, NewErrArtifactNotFound(form.URL)
	}
	return &uploads[0], nil
}

// owned returns the record when it exists, has the modality and belongs to ownerID.
func (us *UploadService) owned(ctx context.Context, ownerID string, modality model.Modality, id uuid.UUID) (*model.Upload, error) {
	upload, err := us.store.Upload().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrUploadNotFound(id)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if upload.OwnerID != ownerID || upload.Modality != modality {
		return nil, NewErrUploadNotFound(id)
	}
	return upload, nil
}

// validateFile checks type and size and returns the file content.
func validateFile(modality model.Modality, file FileUpload) ([]byte, error) {
	if strings.TrimSpace(file.FileName) == "" {
		return nil, NewErrInvalidInput("file name is required")
	}

	limit := MaxFundusSize
	ext := strings.ToLower(filepath.Ext(file.FileName))
	switch modality {
	case model.ModalityFundus:
		if !strings.HasPrefix(strings.ToLower(file.ContentType), "image/") {
			return nil, NewErrUnsupportedFile(file.FileName, "fundus uploads must be images")
		}
	case model.ModalityErg:
		limit = MaxErgSize
		if !funk.ContainsString(ergExtensions, ext) {
			return nil, NewErrUnsupportedFile(file.FileName, fmt.Sprintf("ERG uploads must be one of %s", strings.Join(ergExtensions, ", ")))
		}
	default:
		return nil, NewErrInvalidInput(fmt.Sprintf("unknown modality %q", modality))
	}

	content, err := io.ReadAll(io.LimitReader(file.Content, limit+1))
	if err != nil {
		return nil, NewErrFileCorrupted(fmt.Sprintf("failed to read %s: %v", file.FileName, err))
	}
	if int64(len(content)) > limit {
		return nil, NewErrFileTooLarge(file.FileName, limit)
	}
	if len(content) == 0 {
		return nil, NewErrInvalidInput("file is empty")
	}

	if modality == model.ModalityErg && ext == ".xlsx" {
		if err := validateWorkbook(content); err != nil {
			return nil, err
		}
	}
	return content, nil
}

// validateWorkbook makes sure an .xlsx recording opens and has at least one non empty sheet.
func validateWorkbook(content []byte) error {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return NewErrWorkbookCorrupted(err.Error())
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return NewErrWorkbookCorrupted(err.Error())
		}
		if len(rows) > 0 {
			return nil
		}
	}
	return NewErrWorkbookCorrupted("workbook has no data")
}

func resourceType(modality model.Modality) string {
	if modality == model.ModalityErg {
		return audit.ResourceErgData
	}
	return audit.ResourceFundusImage
}

func uploadAction(modality model.Modality) audit.Action {
	if modality == model.ModalityErg {
		return audit.UploadErgData
	}
	return audit.UploadFundusImage
}

func viewAction(modality model.Modality) audit.Action {
	if modality == model.ModalityErg {
		return audit.ViewErgData
	}
	return audit.ViewFundusImage
}

func deleteAction(modality model.Modality) audit.Action {
	if modality == model.ModalityErg {
		return audit.DeleteErgData
	}
	return audit.DeleteFundusImage
}
