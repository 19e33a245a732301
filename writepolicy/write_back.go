package writepolicy

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/krisalay/statement-cache/types"
)

// This file implements the "write-back" policy.

// writeReq represents one executed mutation waiting to be recorded.
type writeReq struct {
	ctx  context.Context
	stmt string
}

/*
WriteBackPolicy records mutations asynchronously in a Recorder (for example a journal),
keeping mutation bookkeeping out of the statement cache.
*/
type WriteBackPolicy struct {

	// recorder receives the statements.
	recorder types.Recorder

	// ch is a buffered channel that holds pending records.
	// Buffering allows bursts of mutations without blocking the database layer.
	ch chan writeReq

	// wg is used to wait for the worker to finish during shutdown.
	wg sync.WaitGroup

	closeOnce sync.Once

	// mu guards closed. OnMutation holds the read lock while it sends,
	// so Close never closes ch under a pending send.
	mu     sync.RWMutex
	closed bool

	// dropped counts mutations discarded because the queue was full.
	dropped atomic.Int64

	logger zerolog.Logger
}

// NewWriteBackPolicy creates a new write-back policy and starts its worker.
func NewWriteBackPolicy(recorder types.Recorder, buffer int, logger zerolog.Logger) *WriteBackPolicy {
	if buffer <= 0 {
		buffer = 1
	}
	w := &WriteBackPolicy{
		recorder: recorder,
		ch:       make(chan writeReq, buffer),
		logger:   logger,
	}

	w.wg.Add(1)
	go w.worker()

	return w
}

// OnMutation queues stmt for recording.
// If the queue is full, the record is DROPPED: blocking here would stall the database layer.
// After Close every record is dropped.
func (w *WriteBackPolicy) OnMutation(ctx context.Context, stmt string) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.dropped.Add(1)
		w.logger.Debug().Str("statement", stmt).Msg("mutation record dropped, policy closed")
		return
	}

	select {
	case w.ch <- writeReq{context.WithoutCancel(ctx), stmt}:
	default:
		w.dropped.Add(1)
		w.logger.Debug().Str("statement", stmt).Msg("mutation record dropped, queue full")
	}
}

// Dropped returns how many mutations were discarded under pressure.
func (w *WriteBackPolicy) Dropped() int64 {
	return w.dropped.Load()
}

// worker drains the queue into the recorder.
func (w *WriteBackPolicy) worker() {
	defer w.wg.Done()

	for req := range w.ch {
		if err := w.recorder.Record(req.ctx, req.stmt); err != nil {
			w.logger.Warn().Err(err).Str("statement", req.stmt).Msg("could not record mutation")
		}
	}
}

/*
Close shuts down the write-back policy gracefully.
------------------
1. Close the channel (no more records accepted)
2. Wait for the worker to finish processing queued records

Close is safe to call more than once, and concurrently with OnMutation.
*/
func (w *WriteBackPolicy) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.ch)
		w.mu.Unlock()
	})
	w.wg.Wait()
}
