package core

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClassifierService orchestrates the classification of one email: it builds
// the prompt, calls the external service through the shared rate limiter,
// validates the response, and retries with backoff until the attempt budget
// is exhausted. Each email is independent; the only state shared across
// emails is the limiter.
type ClassifierService struct {
	llm            LLMClient
	cache          VerdictCache
	limiter        *rate.Limiter
	backoff        BackoffPolicy
	attemptTimeout time.Duration
	maxBodySize    int
	cacheEnabled   bool
	cacheTTL       time.Duration
	logger         *zap.Logger
}

// NewClassifierService creates a new classifier service.
func NewClassifierService(
	llm LLMClient,
	cache VerdictCache,
	limiter *rate.Limiter,
	backoff BackoffPolicy,
	attemptTimeout time.Duration,
	maxBodySize int,
	cacheEnabled bool,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *ClassifierService {
	return &ClassifierService{
		llm:            llm,
		cache:          cache,
		limiter:        limiter,
		backoff:        backoff,
		attemptTimeout: attemptTimeout,
		maxBodySize:    maxBodySize,
		cacheEnabled:   cacheEnabled,
		cacheTTL:       cacheTTL,
		logger:         logger,
	}
}

// ClassifyEmail runs the per-email state machine to a terminal verdict:
// Validated on success, Failed once the attempt budget is exhausted. It never
// returns a partial result.
func (s *ClassifierService) ClassifyEmail(ctx context.Context, rec *EmailRecord) *Verdict {
	start := time.Now()
	verdict := &Verdict{
		EmailID: rec.ID,
		State:   StatePending,
		ModelID: s.llm.ModelID(),
	}
	defer func() { verdict.Elapsed = time.Since(start) }()

	// Emails without attachments settle immediately with an empty partition.
	if len(rec.AttachmentFilenames) == 0 {
		verdict.State = StateValidated
		verdict.Result = &ClassificationResult{ID: rec.ID, Relevant: []string{}, Irrelevant: []string{}}
		return verdict
	}

	if s.cacheEnabled && s.cache != nil {
		if entry, err := s.cache.Get(ctx, rec.ID); err == nil {
			cached := &ClassificationResult{ID: rec.ID, Relevant: entry.Relevant, Irrelevant: entry.Irrelevant}
			if cached.Covers(rec.AttachmentFilenames) {
				s.logger.Debug("Cache hit for email", zap.String("email_id", rec.ID))
				sortResult(cached)
				verdict.State = StateValidated
				verdict.Result = cached
				verdict.FromCache = true
				return verdict
			}
			// Stale entry for a different attachment set, reclassify.
			s.logger.Debug("Discarding stale cache entry", zap.String("email_id", rec.ID))
		}
	}

	prompt, err := BuildPrompt(rec, s.maxBodySize)
	if err != nil {
		verdict.State = StateFailed
		verdict.Err = err
		return verdict
	}

	var lastErr error
	for attempt := 1; attempt <= s.backoff.MaxAttempts; attempt++ {
		verdict.State = StateClassifying
		verdict.Attempts = attempt

		if attempt > 1 {
			delay := s.backoff.Delay(attempt - 1)
			s.logger.Debug("Backing off before retry",
				zap.String("email_id", rec.ID),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			if err := sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		raw, err := s.complete(ctx, prompt)
		if err != nil {
			lastErr = &TransientServiceError{Err: err}
			s.logger.Warn("Service call failed",
				zap.String("email_id", rec.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		result, err := ValidateResponse(rec.ID, raw, rec.AttachmentFilenames)
		if err != nil {
			lastErr = err
			s.logger.Warn("Response failed validation",
				zap.String("email_id", rec.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		verdict.State = StateValidated
		verdict.Result = result
		s.updateCache(ctx, result)
		return verdict
	}

	verdict.State = StateFailed
	verdict.Err = lastErr
	s.logger.Error("Classification failed after exhausting attempts",
		zap.String("email_id", rec.ID),
		zap.Int("attempts", verdict.Attempts),
		zap.Error(lastErr))
	return verdict
}

// complete performs one provider call under the per-attempt timeout.
func (s *ClassifierService) complete(ctx context.Context, prompt string) (string, error) {
	if s.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
		defer cancel()
	}
	return s.llm.Complete(ctx, prompt)
}

func (s *ClassifierService) updateCache(ctx context.Context, result *ClassificationResult) {
	if !s.cacheEnabled || s.cache == nil {
		return
	}
	now := time.Now()
	entry := &CacheEntry{
		EmailID:    result.ID,
		Relevant:   result.Relevant,
		Irrelevant: result.Irrelevant,
		LastSeen:   now,
		ExpiresAt:  now.Add(s.cacheTTL),
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.Error("Failed to update cache", zap.String("email_id", result.ID), zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
