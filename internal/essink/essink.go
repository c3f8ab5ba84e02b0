// Package essink adapts JSONL shard output to a document-sink ingest
// contract: batched PutBatch with retry, generalizing the exponential
// backoff loop the teacher's ResumableProcessor uses for flaky downloads
// into a configurable policy for a flaky search backend instead.
package essink

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Delete when the sink reports the document did
// not exist; callers must not treat this as a failure (spec 4.9).
var ErrNotFound = errors.New("essink: document not found")

// Document is one JSONL line ready for ingestion, keyed on its primary
// accession for index (upsert) semantics.
type Document struct {
	Accession string
	Source    []byte
}

// Sink is the minimal contract a search backend adapter must satisfy.
// internal/es.Client implements this against Elasticsearch.
type Sink interface {
	PutBatch(ctx context.Context, index string, docs []Document) error
	Delete(ctx context.Context, index, accession string) error
}

// BackoffPolicy configures PutBatchWithRetry's exponential backoff:
// initial 1s, factor 2, cap 60s, max 3 retries per spec 4.9.
type BackoffPolicy struct {
	Initial    time.Duration
	Factor     float64
	Cap        time.Duration
	MaxRetries int
}

// DefaultBackoff matches the spec's literal values.
var DefaultBackoff = BackoffPolicy{
	Initial:    1 * time.Second,
	Factor:     2,
	Cap:        60 * time.Second,
	MaxRetries: 3,
}

// IsTransient classifies an error as retryable. Sink implementations should
// wrap 5xx and connection-reset errors so this can recognize them; any
// error not recognized is treated as permanent (ERROR, skip batch, spec 7).
type IsTransient func(error) bool

// PutBatchWithRetry calls sink.PutBatch, retrying transient errors with
// exponential backoff up to policy.MaxRetries times. On the final failure
// it returns the last error wrapped with %w, so callers can log ERROR and move on
// to the next batch rather than aborting the step.
func PutBatchWithRetry(ctx context.Context, sink Sink, index string, docs []Document, policy BackoffPolicy, isTransient IsTransient) error {
	delay := policy.Initial
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * policy.Factor)
			if delay > policy.Cap {
				delay = policy.Cap
			}
		}

		err := sink.PutBatch(ctx, index, docs)
		if err == nil {
			return nil
		}
		lastErr = err

		if isTransient == nil || !isTransient(err) {
			return fmt.Errorf("essink: permanent error putting batch of %d to %s: %w", len(docs), index, err)
		}
	}
	return fmt.Errorf("essink: exhausted %d retries putting batch of %d to %s: %w", policy.MaxRetries, len(docs), index, lastErr)
}

// DeleteBlacklisted is the dedicated post-ingest delete pass named in
// DESIGN NOTES' resolved open question: never implicit in PutBatch's
// index (upsert) semantics.
func DeleteBlacklisted(ctx context.Context, sink Sink, index string, accessions []string) (deleted, notFound int, err error) {
	for _, acc := range accessions {
		derr := sink.Delete(ctx, index, acc)
		if derr == nil {
			deleted++
			continue
		}
		if errors.Is(derr, ErrNotFound) {
			notFound++
			continue
		}
		return deleted, notFound, fmt.Errorf("essink: delete %s from %s: %w", acc, index, derr)
	}
	return deleted, notFound, nil
}

// Batch splits docs into fixed-size chunks of size n, the sink's 5,000-line
// batching granularity (spec 4.9).
func Batch(docs []Document, n int) [][]Document {
	if n <= 0 {
		n = 5000
	}
	var batches [][]Document
	for i := 0; i < len(docs); i += n {
		end := i + n
		if end > len(docs) {
			end = len(docs)
		}
		batches = append(batches, docs[i:end])
	}
	return batches
}
