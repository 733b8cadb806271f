package processing

import (
	"context"
	"time"

	"github.com/retinalab/retina-dashboard/internal/jobs"
	"github.com/retinalab/retina-dashboard/pkg/metrics"
	"github.com/riverqueue/river"
)

const failureTimeout = 10 * time.Second

// NewWorkers registers the finalization workers of engine.
func NewWorkers(engine *Engine) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewUploadWorker(engine))
	river.AddWorker(workers, NewAnalysisWorker(engine))
	return workers
}

type UploadWorker struct {
	river.WorkerDefaults[jobs.UploadArgs]
	engine *Engine
}

func NewUploadWorker(engine *Engine) *UploadWorker {
	return &UploadWorker{engine: engine}
}

func (w *UploadWorker) Timeout(*river.Job[jobs.UploadArgs]) time.Duration {
	return jobs.JobTimeout
}

// Work finalizes the upload. A failed run still leaves the record failed so it never
// waits for the sweeper.
func (w *UploadWorker) Work(ctx context.Context, job *river.Job[jobs.UploadArgs]) error {
	err := w.engine.RunUpload(ctx, job.Args)
	if err != nil {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureTimeout)
		defer cancel()
		w.engine.failUpload(fctx, job.Args.RecordID, err)
	}
	metrics.IncreaseProcessedJobsMetric(job.Args.Kind(), jobResult(err))
	return err
}

type AnalysisWorker struct {
	river.WorkerDefaults[jobs.AnalysisArgs]
	engine *Engine
}

func NewAnalysisWorker(engine *Engine) *AnalysisWorker {
	return &AnalysisWorker{engine: engine}
}

func (w *AnalysisWorker) Timeout(*river.Job[jobs.AnalysisArgs]) time.Duration {
	return jobs.JobTimeout
}

func (w *AnalysisWorker) Work(ctx context.Context, job *river.Job[jobs.AnalysisArgs]) error {
	err := w.engine.RunAnalysis(ctx, job.Args)
	if err != nil {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureTimeout)
		defer cancel()
		w.engine.failAnalysis(fctx, job.Args.AnalysisID, err)
	}
	metrics.IncreaseProcessedJobsMetric(job.Args.Kind(), jobResult(err))
	return err
}

func jobResult(err error) string {
	if err != nil {
		return "failed"
	}
	return "succeeded"
}
