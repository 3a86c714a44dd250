package core

import (
	"context"
)

// LLMClient defines the interface for interacting with the external
// text-reasoning service.
type LLMClient interface {
	// Complete sends a prompt and returns the model's raw response text.
	Complete(ctx context.Context, prompt string) (string, error)

	// ModelID identifies the underlying model for reporting.
	ModelID() string
}

// ResultStore persists validated classification results keyed by email id.
type ResultStore interface {
	// Write stores a result. Writing the same result twice must leave
	// byte-identical output.
	Write(result *ClassificationResult) error
}

// VerdictCache stores settled classifications keyed by email id so repeated
// runs over a corpus skip the provider call.
type VerdictCache interface {
	// Get retrieves a cached entry, or ErrCacheMiss.
	Get(ctx context.Context, emailID string) (*CacheEntry, error)

	// Set stores a cache entry.
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry.
	Delete(ctx context.Context, emailID string) error

	// Cleanup removes expired entries.
	Cleanup(ctx context.Context) error
}
