package processing

import (
	"context"
	"errors"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/retinalab/retina-dashboard/internal/store"
	"github.com/retinalab/retina-dashboard/pkg/metrics"
	"go.uber.org/zap"
)

const (
	sweepKindUpload   = "upload"
	sweepKindAnalysis = "analysis"
)

// Sweeper fails records that stayed in processing longer than the stuck timeout,
// e.g. when their job was discarded before it could write a result.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	timeout  time.Duration
	log      *zap.SugaredLogger
}

func NewSweeper(engine *Engine, interval, timeout time.Duration) *Sweeper {
	return &Sweeper{
		engine:   engine,
		interval: interval,
		timeout:  timeout,
		log:      zap.S().Named("sweeper"),
	}
}

// Run sweeps once at startup and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.log.Errorw("sweep failed", "error", err)
	}

	ticker := jitterbug.New(s.interval, &jitterbug.Norm{Stdev: 30 * time.Millisecond, Mean: 0})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Errorw("sweep failed", "error", err)
			}
		}
	}
}

// Sweep fails every stuck upload and analysis and returns how many were failed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.engine.now().Add(-s.timeout)

	uploads, err := s.engine.store.Upload().ListStuck(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, u := range uploads {
		err := s.engine.FinalizeUpload(ctx, u.ID, Failure(ReasonTimedOut))
		switch {
		case err == nil:
			swept++
		case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrRecordNotFound):
			// finished or deleted meanwhile
		default:
			return swept, err
		}
	}
	metrics.IncreaseSweptJobsMetric(sweepKindUpload, swept)

	analyses, err := s.engine.store.Analysis().ListStuck(ctx, cutoff)
	if err != nil {
		return swept, err
	}
	sweptAnalyses := 0
	for _, a := range analyses {
		err := s.engine.FinalizeAnalysis(ctx, a.ID, AnalysisFailure(ReasonTimedOut))
		switch {
		case err == nil:
			sweptAnalyses++
		case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrRecordNotFound):
		default:
			return swept + sweptAnalyses, err
		}
	}
	metrics.IncreaseSweptJobsMetric(sweepKindAnalysis, sweptAnalyses)

	if total := swept + sweptAnalyses; total > 0 {
		s.log.Infow("failed stuck records", "uploads", swept, "analyses", sweptAnalyses)
	}
	return swept + sweptAnalyses, nil
}
