// Package store persists classification results as one JSON file per email,
// named attachments_<id>.json, with both categories sorted so identical
// logical results always produce byte-identical files.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/attachment-triage/internal/core"
)

const (
	filePrefix = "attachments_"
	fileSuffix = ".json"
)

// FileName returns the prediction file name for an email id.
func FileName(id string) string {
	return filePrefix + id + fileSuffix
}

// ParseID extracts the email id from a prediction file name.
func ParseID(name string) (string, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if id == "" {
		return "", false
	}
	return id, true
}

// FileStore writes results to a directory. It implements core.ResultStore.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the output directory if needed and returns a store.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Write persists a validated result. It assumes the input already satisfies
// the partition invariant and performs no validation or retries. Rewriting
// an identical result leaves the file untouched.
func (s *FileStore) Write(result *core.ClassificationResult) error {
	data, err := Marshal(result)
	if err != nil {
		return err
	}

	path := filepath.Join(s.dir, FileName(result.ID))
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		s.logger.Debug("Result unchanged, skipping write", zap.String("email_id", result.ID))
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result for %s: %w", result.ID, err)
	}
	s.logger.Debug("Wrote result",
		zap.String("email_id", result.ID),
		zap.Int("relevant", len(result.Relevant)),
		zap.Int("irrelevant", len(result.Irrelevant)))
	return nil
}

// Marshal serializes a result in the stable on-disk form: two keys, each a
// lexicographically sorted array, two-space indent, trailing newline.
func Marshal(result *core.ClassificationResult) ([]byte, error) {
	doc := core.ClassificationResult{
		Relevant:   sortedCopy(result.Relevant),
		Irrelevant: sortedCopy(result.Irrelevant),
	}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result for %s: %w", result.ID, err)
	}
	return append(data, '\n'), nil
}

// ReadFile loads a single prediction or ground-truth file.
func ReadFile(path, id string) (*core.ClassificationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var result core.ClassificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	result.ID = id
	return &result, nil
}

// LoadDir reads every attachments_*.json file in dir, keyed by id. Files
// that fail to parse are isolated into the returned error map rather than
// aborting the load; the error return covers only an unreadable directory.
func LoadDir(dir string) (map[string]*core.ClassificationResult, map[string]error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	results := make(map[string]*core.ClassificationResult)
	failures := make(map[string]error)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := ParseID(entry.Name())
		if !ok {
			continue
		}
		result, err := ReadFile(filepath.Join(dir, entry.Name()), id)
		if err != nil {
			failures[id] = err
			continue
		}
		results[id] = result
	}
	return results, failures, nil
}

func sortedCopy(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)
	return out
}
