// Package jobs is a small delayed job queue with Redis and in-memory
// backends, plus a polling worker with bounded retries.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoJob is returned by Claim when nothing is due.
var ErrNoJob = errors.New("jobs: no job due")

// Job is one unit of background work.
type Job struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewJob encodes payload into a job of the given kind.
func NewJob(kind string, payload any) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return &Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Kind, err)
	}
	return nil
}

// Queue is an at-least-once delayed queue. Claim counts a delivery in the
// stored job, so Attempts survives a worker that dies mid-handler. A claimed
// job stays leased until it is acked, retried or abandoned; RequeueStale
// returns expired leases to the due set.
type Queue interface {
	Enqueue(ctx context.Context, job *Job, at time.Time) error
	Claim(ctx context.Context, now time.Time, lease time.Duration) (*Job, error)
	Ack(ctx context.Context, job *Job) error
	Retry(ctx context.Context, job *Job, at time.Time) error
	Abandon(ctx context.Context, job *Job, reason string) error
	RequeueStale(ctx context.Context, now time.Time) (int, error)
}
