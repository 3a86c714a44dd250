// Package runner drives the classification of a batch of emails through a
// bounded worker pool. Each email is an independent unit of work: failures
// are recorded in the run summary and never abort the batch.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikey/attachment-triage/internal/core"
)

// Classifier produces a terminal verdict for one email.
type Classifier interface {
	ClassifyEmail(ctx context.Context, rec *core.EmailRecord) *core.Verdict
}

// RunSummary aggregates the outcome of one batch run.
type RunSummary struct {
	RunID          string
	Total          int
	Written        int
	Failed         int
	CacheHits      int
	FailuresByKind map[string]int
	Elapsed        time.Duration
}

// Succeeded reports whether every email reached the Written state.
func (s *RunSummary) Succeeded() bool {
	return s.Failed == 0
}

// BatchRunner fans records out to a fixed number of workers sharing one
// classifier (and through it, one rate limiter).
type BatchRunner struct {
	classifier Classifier
	store      core.ResultStore
	workers    int
	logger     *zap.Logger
}

// NewBatchRunner creates a new batch runner. workers < 1 is treated as 1.
func NewBatchRunner(classifier Classifier, store core.ResultStore, workers int, logger *zap.Logger) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	return &BatchRunner{
		classifier: classifier,
		store:      store,
		workers:    workers,
		logger:     logger,
	}
}

// Run classifies and persists every record, returning the run summary. The
// returned error is non-nil only when the context is canceled; per-email
// failures are reported through the summary.
func (r *BatchRunner) Run(ctx context.Context, records []*core.EmailRecord) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{
		RunID:          uuid.NewString(),
		Total:          len(records),
		FailuresByKind: make(map[string]int),
	}
	var mu sync.Mutex

	r.logger.Info("Starting classification run",
		zap.String("run_id", summary.RunID),
		zap.Int("emails", len(records)),
		zap.Int("workers", r.workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			verdict := r.classifier.ClassifyEmail(gctx, rec)
			if verdict.State == core.StateValidated {
				if err := r.store.Write(verdict.Result); err != nil {
					verdict.State = core.StateFailed
					verdict.Err = err
					r.logger.Error("Failed to persist result",
						zap.String("email_id", rec.ID), zap.Error(err))
				} else {
					verdict.State = core.StateWritten
				}
			}

			mu.Lock()
			defer mu.Unlock()
			switch verdict.State {
			case core.StateWritten:
				summary.Written++
				if verdict.FromCache {
					summary.CacheHits++
				}
			case core.StateFailed:
				summary.Failed++
				summary.FailuresByKind[core.FailureKind(verdict.Err)]++
				verdict.State = core.StateErrorRecorded
			}
			return nil
		})
	}

	err := g.Wait()
	summary.Elapsed = time.Since(start)

	r.logger.Info("Classification run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("written", summary.Written),
		zap.Int("failed", summary.Failed),
		zap.Int("cache_hits", summary.CacheHits),
		zap.Duration("elapsed", summary.Elapsed))
	if err != nil {
		return summary, err
	}
	return summary, nil
}
