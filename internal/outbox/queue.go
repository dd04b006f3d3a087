// Package outbox delivers mutations to the remote authority. Requests that
// cannot be delivered wait in the durable queue and are retried strictly in
// FIFO order.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/clinicsync/internal/bus"
	"github.com/matheus3301/clinicsync/internal/gateway"
	"github.com/matheus3301/clinicsync/internal/metrics"
	"github.com/matheus3301/clinicsync/internal/store"
	"go.uber.org/zap"
)

// Sender performs one remote mutation.
type Sender interface {
	Send(ctx context.Context, method, path string, body []byte) gateway.Outcome
}

// Connectivity reports the last known reachability of the authority.
type Connectivity interface {
	IsOffline() bool
}

// DrainResult summarizes one Drain call.
type DrainResult struct {
	Sent      int
	Rejected  int
	Remaining int
	// Stopped is set when a request came back Unreachable.
	Stopped bool
	// Skipped is set when another drain was already running.
	Skipped bool
}

// Queue is the offline mutation queue.
type Queue struct {
	db      *store.DB
	sender  Sender
	conn    Connectivity
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
	retry   time.Duration

	draining atomic.Bool
	pending  atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a queue over db. conn and m may be nil.
func NewQueue(db *store.DB, sender Sender, conn Connectivity, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger, retry time.Duration) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		db:      db,
		sender:  sender,
		conn:    conn,
		bus:     b,
		metrics: m,
		logger:  logger,
		retry:   retry,
	}
}

// Enqueue appends req to the tail of the queue and, unless the authority is
// known to be unreachable, drains immediately.
func (q *Queue) Enqueue(ctx context.Context, req store.QueuedRequest) error {
	if err := q.append(req); err != nil {
		return err
	}
	if q.conn != nil && q.conn.IsOffline() {
		return nil
	}
	q.Drain(ctx)
	return nil
}

func (q *Queue) append(req store.QueuedRequest) error {
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = time.Now()
	}
	if err := q.db.AppendRequest(req); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	q.metrics.IncEnqueued()
	q.refreshDepth()
	q.logger.Info("request queued",
		zap.String("request_id", req.ID),
		zap.String("method", req.Method),
		zap.String("url", req.URL),
	)
	q.bus.Publish(bus.NewEvent(bus.KindOutboxEnqueued, req.ID))
	return nil
}

// Len returns the number of queued requests.
func (q *Queue) Len() (int, error) {
	return q.db.CountRequests()
}

// List returns up to limit queued requests in delivery order.
func (q *Queue) List(limit int) ([]store.QueuedRequest, error) {
	return q.db.ListRequests(limit)
}

// Drain delivers queued requests from the head until the queue is empty or
// a request comes back Unreachable. Only one drain runs at a time; a call
// made while one is running is skipped and the running drain picks up
// whatever was appended.
func (q *Queue) Drain(ctx context.Context) DrainResult {
	var total DrainResult
	for {
		if !q.draining.CompareAndSwap(false, true) {
			q.pending.Store(true)
			total.Skipped = true
			return total
		}
		res := q.drainOnce(ctx)
		q.draining.Store(false)

		total.Sent += res.Sent
		total.Rejected += res.Rejected
		total.Stopped = res.Stopped
		total.Remaining = res.Remaining
		if res.Stopped || !q.pending.Swap(false) {
			return total
		}
	}
}

func (q *Queue) drainOnce(ctx context.Context) DrainResult {
	var res DrainResult
	defer func() {
		n, err := q.db.CountRequests()
		if err == nil {
			res.Remaining = n
			q.metrics.SetOutboxDepth(n)
		}
	}()

	for {
		if ctx.Err() != nil {
			res.Stopped = true
			return res
		}
		head, err := q.db.OldestRequest()
		if err != nil {
			q.logger.Error("failed to read queue head", zap.Error(err))
			res.Stopped = true
			return res
		}
		if head == nil {
			return res
		}

		out := q.sender.Send(ctx, head.Method, head.URL, head.Body)
		q.metrics.ObserveResult(out.Kind.String())

		switch out.Kind {
		case gateway.Confirmed, gateway.Duplicate:
			res.Sent++
			q.bus.Publish(bus.NewEvent(bus.KindOutboxSent, head.ID))
		case gateway.Rejected:
			res.Rejected++
			q.logger.Warn("queued request rejected, dropping",
				zap.String("request_id", head.ID),
				zap.String("method", head.Method),
				zap.String("url", head.URL),
				zap.Int("status", out.Status),
				zap.String("reason", out.Reason),
			)
			q.bus.Publish(bus.NewEvent(bus.KindOutboxDropped, head.ID))
		default:
			q.logger.Info("authority unreachable, queue paused",
				zap.String("request_id", head.ID),
				zap.String("reason", out.Reason),
			)
			res.Stopped = true
			return res
		}

		if err := q.db.RemoveRequest(head.ID); err != nil {
			q.logger.Error("failed to remove delivered request", zap.Error(err), zap.String("request_id", head.ID))
			res.Stopped = true
			return res
		}
	}
}

// Start drains whatever survived the last run, then drains again on every
// reconnection and on the retry interval while requests remain.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)

	n, err := q.db.CountRequests()
	if err != nil {
		q.logger.Error("failed to count queued requests", zap.Error(err))
	} else {
		q.metrics.SetOutboxDepth(n)
		q.logger.Info("queue loaded", zap.Int("queue_depth", n))
	}

	ch, unsub := q.bus.Subscribe(bus.KindNetReconnected, 8)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer unsub()
		q.Drain(ctx)

		var tick <-chan time.Time
		if q.retry > 0 {
			ticker := time.NewTicker(q.retry)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			select {
			case <-ch:
				q.logger.Info("reconnected, draining queue")
				q.Drain(ctx)
			case <-tick:
				if n, err := q.db.CountRequests(); err == nil && n > 0 {
					q.Drain(ctx)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the background loop and waits for it.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

func (q *Queue) refreshDepth() {
	if q.metrics == nil {
		return
	}
	if n, err := q.db.CountRequests(); err == nil {
		q.metrics.SetOutboxDepth(n)
	}
}
