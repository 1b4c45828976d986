package jobs

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	job      Job
	due      time.Time
	leased   bool
	deadline time.Time
	seq      uint64
}

// MemoryQueue is the single-process fallback used when Redis is not
// configured. Jobs do not survive a restart.
type MemoryQueue struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	dead    []Job
	seq     uint64
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[string]*memoryEntry)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job *Job, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	q.entries[job.ID] = &memoryEntry{job: *job, due: at, seq: q.seq}
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, lease time.Duration) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var next *memoryEntry
	for _, e := range q.entries {
		if e.leased || e.due.After(now) {
			continue
		}
		if next == nil || e.due.Before(next.due) || (e.due.Equal(next.due) && e.seq < next.seq) {
			next = e
		}
	}
	if next == nil {
		return nil, ErrNoJob
	}
	next.leased = true
	next.deadline = now.Add(lease)
	next.job.Attempts++
	job := next.job
	return &job, nil
}

func (q *MemoryQueue) Ack(_ context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, job.ID)
	return nil
}

func (q *MemoryQueue) Retry(_ context.Context, job *Job, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	q.entries[job.ID] = &memoryEntry{job: *job, due: at, seq: q.seq}
	return nil
}

func (q *MemoryQueue) Abandon(_ context.Context, job *Job, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, job.ID)
	dead := *job
	dead.LastError = reason
	q.dead = append(q.dead, dead)
	return nil
}

func (q *MemoryQueue) RequeueStale(_ context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.entries {
		if e.leased && !e.deadline.After(now) {
			e.leased = false
			e.due = now
			n++
		}
	}
	return n, nil
}

// Len returns the number of pending or leased jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// DeadLetters returns abandoned jobs in abandonment order.
func (q *MemoryQueue) DeadLetters() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Job(nil), q.dead...)
}
