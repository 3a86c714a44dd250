package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// stubLLM fails a fixed number of times, then replays canned responses.
type stubLLM struct {
	mu        sync.Mutex
	failures  int
	responses []string
	calls     int
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return "", errors.New("503 service unavailable")
	}
	i := s.calls - s.failures - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func (s *stubLLM) ModelID() string { return "stub-model" }

func (s *stubLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestService(llm LLMClient, cache VerdictCache, maxAttempts int) *ClassifierService {
	policy := BackoffPolicy{MaxAttempts: maxAttempts, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond}
	limiter := rate.NewLimiter(rate.Inf, 1)
	cacheEnabled := cache != nil
	return NewClassifierService(llm, cache, limiter, policy, time.Second, 0, cacheEnabled, time.Hour, zap.NewNop())
}

func testRecord() *EmailRecord {
	return &EmailRecord{
		ID:                  "7",
		HTMLBody:            "<p>Please find the attached order.</p>",
		AttachmentFilenames: []string{"order.pdf", "logo.png"},
	}
}

const validResponse = `{"relevant": ["order.pdf"], "irrelevant": ["logo.png"]}`

func TestClassifyEmailSucceedsFirstAttempt(t *testing.T) {
	llm := &stubLLM{responses: []string{validResponse}}
	svc := newTestService(llm, nil, 3)

	verdict := svc.ClassifyEmail(context.Background(), testRecord())

	require.Equal(t, StateValidated, verdict.State)
	assert.True(t, verdict.Succeeded())
	assert.Equal(t, 1, verdict.Attempts)
	assert.Equal(t, "stub-model", verdict.ModelID)
	require.NotNil(t, verdict.Result)
	assert.True(t, verdict.Result.Covers(testRecord().AttachmentFilenames))
}

func TestClassifyEmailRetriesTransientFailures(t *testing.T) {
	// Fails k times, then answers; k < max attempts.
	llm := &stubLLM{failures: 2, responses: []string{validResponse}}
	svc := newTestService(llm, nil, 5)

	verdict := svc.ClassifyEmail(context.Background(), testRecord())

	require.Equal(t, StateValidated, verdict.State)
	assert.Equal(t, 3, verdict.Attempts)
	assert.Equal(t, 3, llm.callCount())
}

func TestClassifyEmailRetriesValidationFailures(t *testing.T) {
	llm := &stubLLM{responses: []string{
		`{"relevant": ["order.pdf"], "irrelevant": []}`, // MissingFilename
		`not json at all`,                               // MalformedJSON
		validResponse,
	}}
	svc := newTestService(llm, nil, 5)

	verdict := svc.ClassifyEmail(context.Background(), testRecord())

	require.Equal(t, StateValidated, verdict.State)
	assert.Equal(t, 3, verdict.Attempts)
}

func TestClassifyEmailExhaustsAttemptBudget(t *testing.T) {
	const maxAttempts = 4
	llm := &stubLLM{failures: 1000}
	svc := newTestService(llm, nil, maxAttempts)

	verdict := svc.ClassifyEmail(context.Background(), testRecord())

	require.Equal(t, StateFailed, verdict.State)
	assert.False(t, verdict.Succeeded())
	assert.Nil(t, verdict.Result)
	assert.Equal(t, maxAttempts, verdict.Attempts)
	assert.Equal(t, maxAttempts, llm.callCount())

	var tErr *TransientServiceError
	assert.ErrorAs(t, verdict.Err, &tErr)
	assert.Equal(t, "TransientServiceError", FailureKind(verdict.Err))
}

func TestClassifyEmailFailedVerdictCarriesValidationKind(t *testing.T) {
	llm := &stubLLM{responses: []string{`{"relevant": [], "irrelevant": []}`}}
	svc := newTestService(llm, nil, 2)

	verdict := svc.ClassifyEmail(context.Background(), testRecord())

	require.Equal(t, StateFailed, verdict.State)
	var vErr *ValidationError
	require.ErrorAs(t, verdict.Err, &vErr)
	assert.Equal(t, MissingFilename, vErr.Kind)
	assert.Equal(t, string(MissingFilename), FailureKind(verdict.Err))
}

func TestClassifyEmailEmptyAttachmentList(t *testing.T) {
	llm := &stubLLM{}
	svc := newTestService(llm, nil, 3)

	verdict := svc.ClassifyEmail(context.Background(), &EmailRecord{ID: "9", HTMLBody: "<p>hi</p>"})

	require.Equal(t, StateValidated, verdict.State)
	assert.Empty(t, verdict.Result.Relevant)
	assert.Empty(t, verdict.Result.Irrelevant)
	assert.Equal(t, 0, llm.callCount())
}

// recordingCache wraps a map to observe orchestrator interactions.
type recordingCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
	sets    int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string]*CacheEntry{}}
}

func (c *recordingCache) Get(ctx context.Context, emailID string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[emailID]; ok {
		return entry, nil
	}
	return nil, ErrCacheMiss
}

func (c *recordingCache) Set(ctx context.Context, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.EmailID] = entry
	c.sets++
	return nil
}

func (c *recordingCache) Delete(ctx context.Context, emailID string) error { return nil }
func (c *recordingCache) Cleanup(ctx context.Context) error                { return nil }

func TestClassifyEmailCacheHitSkipsProvider(t *testing.T) {
	llm := &stubLLM{responses: []string{validResponse}}
	cache := newRecordingCache()
	svc := newTestService(llm, cache, 3)

	first := svc.ClassifyEmail(context.Background(), testRecord())
	require.Equal(t, StateValidated, first.State)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, cache.sets)

	second := svc.ClassifyEmail(context.Background(), testRecord())
	require.Equal(t, StateValidated, second.State)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Result.Relevant, second.Result.Relevant)
	assert.Equal(t, 1, llm.callCount())
}

func TestClassifyEmailIgnoresStaleCacheEntry(t *testing.T) {
	llm := &stubLLM{responses: []string{validResponse}}
	cache := newRecordingCache()
	cache.entries["7"] = &CacheEntry{
		EmailID:   "7",
		Relevant:  []string{"other.pdf"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := newTestService(llm, cache, 3)

	verdict := svc.ClassifyEmail(context.Background(), testRecord())

	require.Equal(t, StateValidated, verdict.State)
	assert.False(t, verdict.FromCache)
	assert.Equal(t, 1, llm.callCount())
}
