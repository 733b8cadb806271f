package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/retinalab/retina-dashboard/internal/audit"
	"github.com/retinalab/retina-dashboard/internal/events"
	"github.com/retinalab/retina-dashboard/internal/fusion"
	"github.com/retinalab/retina-dashboard/internal/jobs"
	"github.com/retinalab/retina-dashboard/internal/store"
	"github.com/retinalab/retina-dashboard/internal/store/model"
	"github.com/retinalab/retina-dashboard/pkg/metrics"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultFundusDelay   = 3 * time.Second
	DefaultErgDelay      = 4 * time.Second
	DefaultAnalysisDelay = 5 * time.Second

	ReasonTimedOut = "processing timed out"
)

var (
	// ErrInputsNotReady is returned when an analysis references uploads that are missing,
	// owned by someone else or not completed.
	ErrInputsNotReady = errors.New("selected data not found or not processed")
	ErrNotSchedulable = errors.New("processing could not be scheduled")
)

// Scheduler persists the jobs that finalize records.
type Scheduler interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Recorder appends audit events.
type Recorder interface {
	Record(ctx context.Context, e audit.Event)
}

type Config struct {
	FundusDelay   time.Duration
	ErgDelay      time.Duration
	AnalysisDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		FundusDelay:   DefaultFundusDelay,
		ErgDelay:      DefaultErgDelay,
		AnalysisDelay: DefaultAnalysisDelay,
	}
}

// Ack acknowledges a start request. Started is false when the record was already
// processing and nothing new was scheduled.
type Ack struct {
	Started bool
	JobID   int64
}

type Option func(e *Engine)

func WithRandom(r fusion.Random) Option {
	return func(e *Engine) {
		e.random = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine drives uploads and analyses through pending, processing and one terminal state.
// It holds no state of its own: every transition is a conditional update in the store.
type Engine struct {
	store     store.Store
	scheduler Scheduler
	publisher events.Publisher
	recorder  Recorder
	random    fusion.Random
	now       func() time.Time
	cfg       Config
	log       *zap.SugaredLogger
}

func NewEngine(s store.Store, scheduler Scheduler, publisher events.Publisher, recorder Recorder, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		scheduler: scheduler,
		publisher: publisher,
		recorder:  recorder,
		random:    globalRandom{},
		now:       func() time.Time { return time.Now().UTC() },
		cfg:       cfg,
		log:       zap.S().Named("processing"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) delay(modality model.Modality) time.Duration {
	if modality == model.ModalityErg {
		return e.cfg.ErgDelay
	}
	return e.cfg.FundusDelay
}

// StartUpload moves a pending upload owned by ownerID to processing and schedules its
// finalization. A second call while the upload is processing is a no-op.
func (e *Engine) StartUpload(ctx context.Context, ownerID string, modality model.Modality, recordID uuid.UUID) (Ack, error) {
	upload, err := e.store.Upload().Get(ctx, recordID)
	if err != nil {
		return Ack{}, err
	}
	if upload.OwnerID != ownerID || upload.Modality != modality {
		return Ack{}, store.ErrRecordNotFound
	}

	started, err := e.store.Upload().MarkProcessing(ctx, recordID, e.now())
	if err != nil {
		return Ack{}, err
	}
	if !started {
		e.log.Debugw("upload already processing", "record_id", recordID)
		return Ack{}, nil
	}

	upload.Status = model.StatusProcessing
	e.uploadTransitioned(ctx, upload)

	result, err := e.scheduler.Insert(ctx, jobs.UploadArgs{RecordID: recordID, Modality: string(modality)}, &river.InsertOpts{
		ScheduledAt: e.now().Add(e.delay(modality)),
	})
	if err != nil {
		e.failUpload(ctx, recordID, err)
		return Ack{}, fmt.Errorf("%w: %v", ErrNotSchedulable, err)
	}

	e.log.Infow("upload processing started", "record_id", recordID, "modality", modality, "job_id", result.Job.ID)
	return Ack{Started: true, JobID: result.Job.ID}, nil
}

// RunUpload derives the features of a processing upload and finalizes it. Records that
// were deleted or already left processing are skipped.
func (e *Engine) RunUpload(ctx context.Context, args jobs.UploadArgs) error {
	upload, err := e.store.Upload().Get(ctx, args.RecordID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			e.log.Debugw("upload gone before processing", "record_id", args.RecordID)
			return nil
		}
		return err
	}
	if upload.Status != model.StatusProcessing {
		return nil
	}

	features, score, err := DeriveFeatures(upload.Modality, e.random)
	if err != nil {
		return err
	}
	return settled(e.FinalizeUpload(ctx, args.RecordID, Success(features, score)))
}

// FinalizeUpload writes the terminal state of a processing upload in a single update.
// A success that breaks the feature invariants is written as a failure.
func (e *Engine) FinalizeUpload(ctx context.Context, recordID uuid.UUID, outcome Outcome) error {
	upload, err := e.store.Upload().Get(ctx, recordID)
	if err != nil {
		return err
	}

	if outcome.Succeeded() {
		if verr := validateUploadOutcome(upload.Modality, outcome); verr != nil {
			outcome = Failure(verr.Error())
		}
	}

	at := e.now()
	if outcome.Succeeded() {
		err = e.store.Upload().Complete(ctx, recordID, outcome.qualityScore, outcome.features, at)
		if err != nil && !errors.Is(err, store.ErrInvalidTransition) && !errors.Is(err, store.ErrRecordNotFound) {
			e.log.Errorw("failed to complete upload", "record_id", recordID, "error", err)
			outcome = Failure(fmt.Sprintf("failed to store results: %v", err))
			err = e.store.Upload().Fail(ctx, recordID, outcome.reason, at)
		}
	} else {
		err = e.store.Upload().Fail(ctx, recordID, outcome.reason, at)
	}
	if err != nil {
		return err
	}

	upload.ProcessedAt = &at
	if outcome.Succeeded() {
		upload.Status = model.StatusCompleted
		upload.QualityScore = &outcome.qualityScore
	} else {
		upload.Status = model.StatusFailed
		upload.FailureReason = &outcome.reason
	}
	e.uploadTransitioned(ctx, upload)

	e.log.Infow("upload finalized", "record_id", recordID, "status", upload.Status, "reason", outcome.reason)
	return nil
}

func (e *Engine) failUpload(ctx context.Context, recordID uuid.UUID, cause error) {
	if err := settled(e.FinalizeUpload(ctx, recordID, Failure(cause.Error()))); err != nil {
		e.log.Errorw("failed to mark upload failed", "record_id", recordID, "cause", cause, "error", err)
	}
}

// StartAnalysis creates a processing analysis over two completed uploads owned by ownerID
// and schedules its finalization.
func (e *Engine) StartAnalysis(ctx context.Context, ownerID string, fundusID, ergID uuid.UUID) (*model.Analysis, Ack, error) {
	if _, _, err := e.loadInputs(ctx, ownerID, fundusID, ergID); err != nil {
		return nil, Ack{}, err
	}

	analysis, err := e.store.Analysis().Create(ctx, model.Analysis{
		OwnerID:        ownerID,
		FundusRecordID: fundusID,
		ErgRecordID:    ergID,
		CreatedAt:      e.now(),
	})
	if err != nil {
		return nil, Ack{}, err
	}
	e.analysisTransitioned(ctx, analysis, "")

	analysisID := analysis.ID
	result, err := e.scheduler.Insert(ctx, jobs.AnalysisArgs{AnalysisID: analysisID}, &river.InsertOpts{
		ScheduledAt: e.now().Add(e.cfg.AnalysisDelay),
	})
	if err != nil {
		e.failAnalysis(ctx, analysisID, err)
		return analysis, Ack{}, fmt.Errorf("%w: %v", ErrNotSchedulable, err)
	}

	e.log.Infow("analysis started", "analysis_id", analysisID, "fundus_id", fundusID, "erg_id", ergID, "job_id", result.Job.ID)
	return analysis, Ack{Started: true, JobID: result.Job.ID}, nil
}

// RunAnalysis fuses the inputs of a processing analysis and finalizes it. The inputs are
// checked again since either upload may have been deleted while the job was scheduled.
func (e *Engine) RunAnalysis(ctx context.Context, args jobs.AnalysisArgs) error {
	analysis, err := e.store.Analysis().Get(ctx, args.AnalysisID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			e.log.Debugw("analysis gone before processing", "analysis_id", args.AnalysisID)
			return nil
		}
		return err
	}
	if analysis.Status != model.StatusProcessing {
		return nil
	}

	fundus, erg, err := e.loadInputs(ctx, analysis.OwnerID, analysis.FundusRecordID, analysis.ErgRecordID)
	if err != nil {
		return fmt.Errorf("analysis inputs unavailable: %w", err)
	}
	return settled(e.FinalizeAnalysis(ctx, args.AnalysisID, AnalysisSuccess(DeriveAnalysis(fundus, erg, e.random))))
}

// loadInputs fetches both uploads concurrently and checks they can feed an analysis.
func (e *Engine) loadInputs(ctx context.Context, ownerID string, fundusID, ergID uuid.UUID) (*model.Upload, *model.Upload, error) {
	var fundus, erg *model.Upload

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fundus, err = e.readyUpload(gctx, ownerID, model.ModalityFundus, fundusID)
		return err
	})
	g.Go(func() error {
		var err error
		erg, err = e.readyUpload(gctx, ownerID, model.ModalityErg, ergID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return fundus, erg, nil
}

func (e *Engine) readyUpload(ctx context.Context, ownerID string, modality model.Modality, id uuid.UUID) (*model.Upload, error) {
	upload, err := e.store.Upload().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrInputsNotReady
		}
		return nil, err
	}
	if upload.OwnerID != ownerID || upload.Modality != modality || upload.Status != model.StatusCompleted {
		return nil, ErrInputsNotReady
	}
	return upload, nil
}

// FinalizeAnalysis writes the terminal state of a processing analysis in a single update.
func (e *Engine) FinalizeAnalysis(ctx context.Context, analysisID uuid.UUID, outcome AnalysisOutcome) error {
	analysis, err := e.store.Analysis().Get(ctx, analysisID)
	if err != nil {
		return err
	}

	at := e.now()
	if outcome.Succeeded() {
		if verr := validateAnalysisResult(outcome.result); verr != nil {
			outcome = AnalysisFailure(verr.Error())
		}
	}

	if outcome.Succeeded() {
		outcome.result.CompletedAt = at
		err = e.store.Analysis().Complete(ctx, analysisID, outcome.result)
		if err != nil && !errors.Is(err, store.ErrInvalidTransition) && !errors.Is(err, store.ErrRecordNotFound) {
			e.log.Errorw("failed to complete analysis", "analysis_id", analysisID, "error", err)
			outcome = AnalysisFailure(fmt.Sprintf("failed to store results: %v", err))
			err = e.store.Analysis().Fail(ctx, analysisID, outcome.reason, at)
		}
	} else {
		err = e.store.Analysis().Fail(ctx, analysisID, outcome.reason, at)
	}
	if err != nil {
		return err
	}

	analysis.CompletedAt = &at
	if outcome.Succeeded() {
		r := outcome.result
		analysis.Status = model.StatusCompleted
		analysis.CombinedConfidence = &r.CombinedConfidence
		analysis.ColorBlindnessType = &r.ColorBlindnessType
		analysis.SeverityLevel = &r.SeverityLevel

		metrics.IncreaseDiagnosisMetric(r.ColorBlindnessType, r.SeverityLevel)
		e.recorder.Record(ctx, audit.Event{
			UserID:       analysis.OwnerID,
			Action:       audit.CompleteAIAnalysis,
			ResourceType: audit.ResourceAnalysis,
			ResourceID:   analysisID.String(),
			Metadata: map[string]any{
				"combined_confidence":  r.CombinedConfidence,
				"color_blindness_type": r.ColorBlindnessType,
				"severity_level":       r.SeverityLevel,
			},
		})
	} else {
		analysis.Status = model.StatusFailed
	}
	e.analysisTransitioned(ctx, analysis, outcome.reason)

	e.log.Infow("analysis finalized", "analysis_id", analysisID, "status", analysis.Status, "reason", outcome.reason)
	return nil
}

func (e *Engine) failAnalysis(ctx context.Context, analysisID uuid.UUID, cause error) {
	if err := settled(e.FinalizeAnalysis(ctx, analysisID, AnalysisFailure(cause.Error()))); err != nil {
		e.log.Errorw("failed to mark analysis failed", "analysis_id", analysisID, "cause", cause, "error", err)
	}
}

// settled drops the errors of a record that was finished or deleted meanwhile.
func settled(err error) error {
	if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrRecordNotFound) {
		return nil
	}
	return err
}

func (e *Engine) uploadTransitioned(ctx context.Context, u *model.Upload) {
	metrics.IncreaseUploadTransitionMetric(string(u.Modality), string(u.Status))

	ev := events.UploadEvent{
		RecordID:      u.ID.String(),
		OwnerID:       u.OwnerID,
		Modality:      string(u.Modality),
		Status:        string(u.Status),
		QualityScore:  u.QualityScore,
		FailureReason: u.FailureReason,
		At:            e.now(),
	}
	if err := e.publisher.Publish(ctx, events.UploadMessageKind, ev.RecordID, ev); err != nil {
		e.log.Warnw("failed to publish upload event", "record_id", ev.RecordID, "error", err)
	}
}

func (e *Engine) analysisTransitioned(ctx context.Context, a *model.Analysis, reason string) {
	metrics.IncreaseAnalysisTransitionMetric(string(a.Status))

	ev := events.AnalysisEvent{
		AnalysisID:         a.ID.String(),
		OwnerID:            a.OwnerID,
		Status:             string(a.Status),
		CombinedConfidence: a.CombinedConfidence,
		ColorBlindnessType: a.ColorBlindnessType,
		SeverityLevel:      a.SeverityLevel,
		At:                 e.now(),
	}
	if reason != "" {
		ev.FailureReason = &reason
	}
	if err := e.publisher.Publish(ctx, events.AnalysisMessageKind, ev.AnalysisID, ev); err != nil {
		e.log.Warnw("failed to publish analysis event", "analysis_id", ev.AnalysisID, "error", err)
	}
}

func validateUploadOutcome(modality model.Modality, o Outcome) error {
	if o.qualityScore < 0 || o.qualityScore > 1 {
		return fmt.Errorf("quality score %v out of range", o.qualityScore)
	}
	switch {
	case modality == model.ModalityFundus && (o.features.Fundus == nil || o.features.Erg != nil):
		return errors.New("fundus upload requires fundus features")
	case modality == model.ModalityErg && (o.features.Erg == nil || o.features.Fundus != nil):
		return errors.New("erg upload requires erg features")
	}
	return nil
}

func validateAnalysisResult(r model.AnalysisResult) error {
	if r.CombinedConfidence < 0 || r.CombinedConfidence > 1 {
		return fmt.Errorf("combined confidence %v out of range", r.CombinedConfidence)
	}
	normal := r.ColorBlindnessType == string(fusion.Normal)
	none := r.SeverityLevel == string(fusion.SeverityNone)
	if normal != none {
		return fmt.Errorf("severity %s does not match diagnosis %s", r.SeverityLevel, r.ColorBlindnessType)
	}
	return nil
}
