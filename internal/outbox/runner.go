package outbox

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/matheus3301/clinicsync/internal/bus"
	"github.com/matheus3301/clinicsync/internal/gateway"
	"github.com/matheus3301/clinicsync/internal/model"
	"github.com/matheus3301/clinicsync/internal/store"
	"go.uber.org/zap"
)

// Runner executes reducer effects in submission order on a single worker.
// An effect is sent directly when nothing is queued ahead of it; otherwise,
// or when the direct send is Unreachable, it joins the queue.
type Runner struct {
	queue  *Queue
	logger *zap.Logger

	mu      sync.Mutex
	pending []model.Effect
	wake    chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a runner that falls back to q.
func NewRunner(q *Queue, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		queue:  q,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Submit hands effects to the worker. It never blocks.
func (r *Runner) Submit(effects []model.Effect) {
	if len(effects) == 0 {
		return
	}
	r.mu.Lock()
	r.pending = append(r.pending, effects...)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Start launches the worker.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		for {
			select {
			case <-r.wake:
				r.RunNow(ctx, r.take())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the worker and persists effects it had not started so they are
// delivered by the queue on the next run.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	for _, eff := range r.take() {
		if err := r.queue.append(toRequest(eff)); err != nil {
			r.logger.Error("failed to persist pending effect", zap.Error(err), zap.String("request_id", eff.ID))
		}
	}
}

func (r *Runner) take() []model.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	effects := r.pending
	r.pending = nil
	return effects
}

// RunNow executes effects synchronously on the caller's goroutine.
func (r *Runner) RunNow(ctx context.Context, effects []model.Effect) {
	for _, eff := range effects {
		r.run(ctx, eff)
	}
}

func (r *Runner) run(ctx context.Context, eff model.Effect) {
	req := toRequest(eff)

	n, err := r.queue.Len()
	if err != nil {
		r.logger.Error("failed to read queue depth", zap.Error(err))
	}
	if err == nil && n == 0 {
		out := r.queue.sender.Send(ctx, req.Method, req.URL, req.Body)
		r.queue.metrics.ObserveResult(out.Kind.String())
		switch out.Kind {
		case gateway.Confirmed, gateway.Duplicate:
			r.queue.bus.Publish(bus.NewEvent(bus.KindOutboxSent, req.ID))
			return
		case gateway.Rejected:
			r.logger.Warn("mutation rejected",
				zap.String("request_id", req.ID),
				zap.String("method", req.Method),
				zap.String("url", req.URL),
				zap.Int("status", out.Status),
				zap.String("reason", out.Reason),
			)
			r.queue.bus.Publish(bus.NewEvent(bus.KindOutboxDropped, req.ID))
			return
		}
		if err := r.queue.append(req); err != nil {
			r.logger.Error("failed to queue unreachable mutation", zap.Error(err), zap.String("request_id", req.ID))
		}
		return
	}

	if err := r.queue.Enqueue(ctx, req); err != nil {
		r.logger.Error("failed to queue mutation", zap.Error(err), zap.String("request_id", req.ID))
	}
}

func toRequest(eff model.Effect) store.QueuedRequest {
	id := eff.ID
	if id == "" {
		id = uuid.NewString()
	}
	return store.QueuedRequest{
		ID:     id,
		Method: eff.Method,
		URL:    eff.Path,
		Body:   eff.Body,
	}
}
