package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/attachment-triage/internal/core"
)

// stubClassifier fails the ids in failWith and validates everything else.
type stubClassifier struct {
	mu       sync.Mutex
	failWith map[string]error
	inFlight int
	maxSeen  int
}

func (c *stubClassifier) ClassifyEmail(ctx context.Context, rec *core.EmailRecord) *core.Verdict {
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.maxSeen {
		c.maxSeen = c.inFlight
	}
	err := c.failWith[rec.ID]
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if err != nil {
		return &core.Verdict{EmailID: rec.ID, State: core.StateFailed, Err: err}
	}
	return &core.Verdict{
		EmailID: rec.ID,
		State:   core.StateValidated,
		Result:  &core.ClassificationResult{ID: rec.ID, Relevant: rec.AttachmentFilenames},
	}
}

// memStore records written results; failOn makes one id fail persistence.
type memStore struct {
	mu      sync.Mutex
	written map[string]*core.ClassificationResult
	failOn  string
}

func newMemStore() *memStore {
	return &memStore{written: make(map[string]*core.ClassificationResult)}
}

func (s *memStore) Write(result *core.ClassificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.ID == s.failOn {
		return errors.New("disk full")
	}
	s.written[result.ID] = result
	return nil
}

func records(n int) []*core.EmailRecord {
	recs := make([]*core.EmailRecord, n)
	for i := range recs {
		recs[i] = &core.EmailRecord{
			ID:                  fmt.Sprintf("%d", i+1),
			AttachmentFilenames: []string{fmt.Sprintf("example_%d_attachment_1.pdf", i+1)},
		}
	}
	return recs
}

func TestRunAllSucceed(t *testing.T) {
	classifier := &stubClassifier{}
	store := newMemStore()
	runner := NewBatchRunner(classifier, store, 4, zap.NewNop())

	summary, err := runner.Run(context.Background(), records(10))
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, 10, summary.Written)
	assert.Equal(t, 0, summary.Failed)
	assert.True(t, summary.Succeeded())
	assert.Len(t, store.written, 10)
	assert.NotEmpty(t, summary.RunID)
}

func TestRunIsolatesFailures(t *testing.T) {
	classifier := &stubClassifier{failWith: map[string]error{
		"2": &core.ValidationError{Kind: core.MalformedJSON, Detail: "no JSON object found in response"},
		"5": &core.TransientServiceError{Err: errors.New("rate limited")},
	}}
	store := newMemStore()
	runner := NewBatchRunner(classifier, store, 2, zap.NewNop())

	summary, err := runner.Run(context.Background(), records(6))
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Written)
	assert.Equal(t, 2, summary.Failed)
	assert.False(t, summary.Succeeded())
	assert.Equal(t, 1, summary.FailuresByKind[string(core.MalformedJSON)])
	assert.Equal(t, 1, summary.FailuresByKind["TransientServiceError"])
	assert.NotContains(t, store.written, "2")
	assert.Contains(t, store.written, "3")
}

func TestRunWriteFailureRecordedAsFailed(t *testing.T) {
	classifier := &stubClassifier{}
	store := newMemStore()
	store.failOn = "1"
	runner := NewBatchRunner(classifier, store, 1, zap.NewNop())

	summary, err := runner.Run(context.Background(), records(3))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.FailuresByKind["Unknown"])
}

func TestRunBoundsConcurrency(t *testing.T) {
	classifier := &stubClassifier{}
	runner := NewBatchRunner(classifier, newMemStore(), 3, zap.NewNop())

	_, err := runner.Run(context.Background(), records(20))
	require.NoError(t, err)
	assert.LessOrEqual(t, classifier.maxSeen, 3)
}

func TestRunEmptyBatch(t *testing.T) {
	runner := NewBatchRunner(&stubClassifier{}, newMemStore(), 4, zap.NewNop())

	summary, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.True(t, summary.Succeeded())
}
