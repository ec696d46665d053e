package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepium/ieltsprep-backend/internal/store"
)

// WriteOp names a Store operation carried by an outbox entry.
type WriteOp string

const (
	OpSet    WriteOp = "set"
	OpUpdate WriteOp = "update"
	OpCreate WriteOp = "create"
	OpDelete WriteOp = "delete"
)

// Write is one queued persistence operation.
type Write struct {
	Op      WriteOp
	Path    string
	Data    any
	Partial map[string]any
}

const (
	outboxBaseBackoff = 500 * time.Millisecond
	outboxMaxBackoff  = 30 * time.Second
	outboxOpTimeout   = 10 * time.Second
)

// Outbox is an ordered queue of Store writes flushed by a single goroutine.
// A failed write stays at the head and is retried with exponential backoff,
// so answer data survives network blips instead of being dropped. Pending
// exposes the unsynced depth for UI indicators.
type Outbox struct {
	mu    sync.Mutex
	queue []Write

	st     store.Store
	log    zerolog.Logger
	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	onSync func(pending int)
}

// NewOutbox creates an outbox over st. onSync, if non-nil, is called with the
// queue depth after every enqueue and every successful flush.
func NewOutbox(st store.Store, log zerolog.Logger, onSync func(pending int)) *Outbox {
	return &Outbox{
		st:     st,
		log:    log.With().Str("component", "outbox").Logger(),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		onSync: onSync,
	}
}

// Start launches the flush loop. Call once.
func (o *Outbox) Start() {
	go o.run()
}

// Enqueue appends a write to the queue.
func (o *Outbox) Enqueue(w Write) {
	o.mu.Lock()
	o.queue = append(o.queue, w)
	pending := len(o.queue)
	o.mu.Unlock()

	o.reportSync(pending)

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of writes not yet applied to the store.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Close stops the flush loop after attempting one final drain pass.
func (o *Outbox) Close() {
	close(o.stop)
	<-o.done
}

func (o *Outbox) run() {
	defer close(o.done)

	backoff := outboxBaseBackoff

	for {
		head, ok := o.peek()
		if !ok {
			select {
			case <-o.stop:
				o.drain()
				return
			case <-o.wake:
				continue
			}
		}

		if err := o.apply(head); err != nil {
			o.log.Error().Err(err).
				Str("op", string(head.Op)).
				Str("path", head.Path).
				Dur("backoff", backoff).
				Msg("Store write failed, will retry")

			select {
			case <-o.stop:
				o.drain()
				return
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > outboxMaxBackoff {
				backoff = outboxMaxBackoff
			}
			continue
		}

		backoff = outboxBaseBackoff
		o.reportSync(o.pop())
	}
}

// drain makes a single best-effort pass over the remaining queue at shutdown.
func (o *Outbox) drain() {
	flushed := 0
	for {
		head, ok := o.peek()
		if !ok {
			break
		}
		if err := o.apply(head); err != nil {
			o.log.Error().Err(err).Str("path", head.Path).Msg("Drain write failed")
			break
		}
		o.reportSync(o.pop())
		flushed++
	}
	if flushed > 0 {
		o.log.Info().Int("count", flushed).Msg("Drained queued writes")
	}
}

func (o *Outbox) apply(w Write) error {
	ctx, cancel := context.WithTimeout(context.Background(), outboxOpTimeout)
	defer cancel()

	switch w.Op {
	case OpSet:
		return o.st.Set(ctx, w.Path, w.Data)
	case OpUpdate:
		return o.st.Update(ctx, w.Path, w.Partial)
	case OpCreate:
		_, err := o.st.Create(ctx, w.Path, w.Data)
		return err
	case OpDelete:
		return o.st.Delete(ctx, w.Path)
	}
	return nil
}

func (o *Outbox) peek() (Write, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return Write{}, false
	}
	return o.queue[0], true
}

// pop removes the head and returns the new depth.
func (o *Outbox) pop() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) > 0 {
		o.queue = o.queue[1:]
	}
	return len(o.queue)
}

func (o *Outbox) reportSync(pending int) {
	if o.onSync != nil {
		o.onSync(pending)
	}
}
