package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// ErrStopped is returned by Enqueue once the dispatcher has been stopped.
var ErrStopped = errors.New("dispatcher stopped")

// DepthFunc receives the pending sample count of a worker after each change.
type DepthFunc func(worker, depth int)

// Dispatcher routes position samples to a fixed set of workers using
// consistent hashing on the session ID, so samples for one session are
// ingested in arrival order by a single goroutine.
type Dispatcher struct {
	workers   []chan ports.SampleInput
	processor ports.SampleProcessor
	log       zerolog.Logger
	depth     DepthFunc

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used. depth may be nil.
func NewDispatcher(numWorkers int, processor ports.SampleProcessor, depth DepthFunc, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if depth == nil {
		depth = func(int, int) {}
	}
	d := &Dispatcher{
		workers:   make([]chan ports.SampleInput, numWorkers),
		processor: processor,
		log:       log,
		depth:     depth,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.SampleInput, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled
// or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends a sample to the worker responsible for its session. It blocks
// while that worker's buffer is full, until ctx is done.
func (d *Dispatcher) Enqueue(ctx context.Context, in ports.SampleInput) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	idx := d.shardIndex(in.SessionID)
	select {
	case d.workers[idx] <- in:
		d.depth(idx, len(d.workers[idx]))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueBatch enqueues samples in order, stopping at the first failure.
func (d *Dispatcher) EnqueueBatch(ctx context.Context, batch []ports.SampleInput) error {
	for _, in := range batch {
		if err := d.Enqueue(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

// Stop closes the worker channels and waits until queued samples are drained.
// It is safe to call more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.wg.Wait()
		return
	}
	d.stopped = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// shardIndex maps a session ID deterministically to a worker index.
func (d *Dispatcher) shardIndex(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.SampleInput) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-ch:
			if !ok {
				return
			}
			d.depth(id, len(ch))
			if err := d.processor.Process(ctx, in); err != nil {
				d.log.Error().Err(err).
					Str("session_id", in.SessionID).
					Str("origin", in.Origin).
					Int("worker_id", id).
					Msg("sample processing failed")
			}
		}
	}
}
