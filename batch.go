package clobengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchQueue holds prepared-but-unsubmitted orders up to a fixed capacity
// and submits them together, tolerating partial failure.
type BatchQueue struct {
	mu       sync.Mutex
	entries  []*PreparedBatchOrder
	capacity int
	submit   func(ctx context.Context, spec OrderSpec) (*SubmitResult, error)
	logger   *zap.Logger
}

// NewBatchQueue creates a queue of the given capacity over the submit
// function (normally Pipeline.Submit).
func NewBatchQueue(capacity int, submit func(ctx context.Context, spec OrderSpec) (*SubmitResult, error), logger *zap.Logger) *BatchQueue {
	if capacity <= 0 {
		capacity = 15
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchQueue{
		capacity: capacity,
		submit:   submit,
		logger:   logger,
	}
}

// Add queues a validated order. Adding to a full queue or adding an order
// that failed validation is rejected without mutating the queue.
func (q *BatchQueue) Add(spec OrderSpec, v Validation) (*PreparedBatchOrder, error) {
	if !v.CanSubmit {
		return nil, &ValidationError{Reasons: v.Reasons}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.capacity {
		return nil, ErrQueueFull
	}

	entry := &PreparedBatchOrder{
		ID:      uuid.NewString(),
		Spec:    spec,
		Summary: fmt.Sprintf("%s %.2f @ %.2f %s", spec.Side, spec.Size, spec.Price, spec.Lifetime),
		State:   BatchStateQueued,
	}
	q.entries = append(q.entries, entry)
	return entry, nil
}

// Remove drops the entry with the given id and reports whether it existed.
func (q *BatchQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Clear discards all queued entries without submitting.
func (q *BatchQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
}

// Len returns the number of queued entries.
func (q *BatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a snapshot of the queued orders.
func (q *BatchQueue) Entries() []PreparedBatchOrder {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]PreparedBatchOrder, len(q.entries))
	for i, e := range q.entries {
		out[i] = *e
	}
	return out
}

// SubmitAll submits every queued order concurrently with an all-settled
// strategy: one entry's failure neither cancels nor blocks the others. On
// any success the queue is cleared (failed intents are not auto-requeued);
// on total failure the queue is preserved and a BatchError returned.
func (q *BatchQueue) SubmitAll(ctx context.Context) (BatchResult, error) {
	q.mu.Lock()
	if len(q.entries) == 0 {
		q.mu.Unlock()
		return BatchResult{}, nil
	}
	batch := make([]*PreparedBatchOrder, len(q.entries))
	copy(batch, q.entries)
	for _, e := range batch {
		e.State = BatchStateSubmitting
	}
	q.mu.Unlock()

	results := make([]BatchEntryResult, len(batch))
	var wg sync.WaitGroup
	for i, entry := range batch {
		wg.Add(1)
		go func(i int, entry *PreparedBatchOrder) {
			defer wg.Done()
			res, err := q.submit(ctx, entry.Spec)

			// Entries() snapshots these pointers under q.mu, so state
			// transitions must hold the same lock.
			q.mu.Lock()
			if err != nil {
				entry.State = BatchStateFailed
			} else {
				entry.State = BatchStateFilled
			}
			q.mu.Unlock()

			if err != nil {
				results[i] = BatchEntryResult{ID: entry.ID, Err: err}
				return
			}
			results[i] = BatchEntryResult{ID: entry.ID, Success: true, Result: res}
		}(i, entry)
	}
	wg.Wait()

	out := BatchResult{Results: results}
	var firstErr error
	for _, r := range results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
			if firstErr == nil {
				firstErr = r.Err
			}
		}
	}

	q.logger.Info("batch submitted",
		zap.Int("succeeded", out.Succeeded),
		zap.Int("failed", out.Failed),
	)

	if out.Succeeded > 0 {
		q.Clear()
		return out, nil
	}
	return out, &BatchError{Failed: out.Failed, First: firstErr}
}
