// Package sync runs the reconciliation loops that pull the authority's view
// into the state store.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/clinicsync/internal/bus"
	"github.com/matheus3301/clinicsync/internal/gateway"
	"github.com/matheus3301/clinicsync/internal/metrics"
	"github.com/matheus3301/clinicsync/internal/model"
	"github.com/matheus3301/clinicsync/internal/state"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Loop names, used in logs, metrics and checkpoints.
const (
	LoopGeneral = "general"
	LoopChats   = "chats"
)

// ErrPullFailed is matched by errors returned from an interactive refresh.
var ErrPullFailed = errors.New("pull failed")

// PullError carries the outcome of a failed pull.
type PullError struct {
	Loop    string
	Outcome gateway.Outcome
}

func (e *PullError) Error() string {
	return fmt.Sprintf("%s pull: %s", e.Loop, e.Outcome)
}

func (e *PullError) Unwrap() error { return ErrPullFailed }

// Puller reads the authority's state. *gateway.Client implements it.
type Puller interface {
	Bootstrap(ctx context.Context) (model.RemoteState, gateway.Outcome)
	Chats(ctx context.Context) ([]model.ChatMessage, gateway.Outcome)
}

// Store is the part of *state.Store the scheduler needs.
type Store interface {
	Dispatch(ctx context.Context, a state.Action) error
	Epoch() uint64
	SignedIn() bool
}

// Config sets the loop cadences and the bound on a single pull.
type Config struct {
	GeneralInterval time.Duration
	ChatInterval    time.Duration
	PullTimeout     time.Duration
}

// Scheduler runs the general and chat loops. Each loop admits one pull at a
// time; a tick that finds the previous pull unfinished is dropped.
type Scheduler struct {
	puller  Puller
	store   Store
	recon   *Reconciler
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
	cfg     Config

	general *semaphore.Weighted
	chats   *semaphore.Weighted
	visible atomic.Bool

	mu     gosync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a scheduler. recon, b and m may be nil.
func New(p Puller, st Store, recon *Reconciler, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger, cfg Config) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PullTimeout <= 0 {
		cfg.PullTimeout = 15 * time.Second
	}
	s := &Scheduler{
		puller:  p,
		store:   st,
		recon:   recon,
		bus:     b,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
		general: semaphore.NewWeighted(1),
		chats:   semaphore.NewWeighted(1),
	}
	s.visible.Store(true)
	return s
}

// SetVisible pauses (false) or resumes (true) the general loop. The chat
// loop runs regardless.
func (s *Scheduler) SetVisible(v bool) {
	if s.visible.Swap(v) != v {
		s.logger.Info("visibility changed", zap.Bool("visible", v))
	}
}

// Visible reports whether the general loop is serving ticks.
func (s *Scheduler) Visible() bool {
	return s.visible.Load()
}

// Bootstrap performs the initial pull. It never creates notifications; on
// failure the snapshot stays as it was and the error is returned.
func (s *Scheduler) Bootstrap(ctx context.Context) error {
	if err := s.general.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.general.Release(1)
	return s.pullGeneral(ctx, false)
}

// Start launches both loops. Calling Start while running is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s.group = g

	// Loops only end on cancellation and never report an error; the group
	// joins them on Stop.
	g.Go(func() error {
		s.loop(gctx, LoopGeneral, s.cfg.GeneralInterval, s.general, true, func(ctx context.Context) error {
			return s.pullGeneral(ctx, true)
		})
		return nil
	})
	// Chats keep flowing while hidden so background sessions still get alerts.
	g.Go(func() error {
		s.loop(gctx, LoopChats, s.cfg.ChatInterval, s.chats, false, s.pullChats)
		return nil
	})
	s.logger.Info("reconciliation started",
		zap.Duration("general_interval", s.cfg.GeneralInterval),
		zap.Duration("chat_interval", s.cfg.ChatInterval),
	)
}

// Stop cancels both loops and waits for them to exit. A pull already in
// flight may finish, but its result is discarded.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, g := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	return g.Wait()
}

// Running reports whether the loops are started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Refresh pulls both views now, waiting for any in-flight pull first. Unlike
// the background loops it reports failure, wrapping ErrPullFailed.
func (s *Scheduler) Refresh(ctx context.Context) error {
	if err := s.general.Acquire(ctx, 1); err != nil {
		return err
	}
	gerr := s.pullGeneral(ctx, true)
	s.general.Release(1)

	if err := s.chats.Acquire(ctx, 1); err != nil {
		return err
	}
	cerr := s.pullChats(ctx)
	s.chats.Release(1)

	if gerr != nil {
		return gerr
	}
	return cerr
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, sem *semaphore.Weighted, requireVisible bool, pull func(context.Context) error) {
	if interval <= 0 {
		s.logger.Warn("loop disabled", zap.String("loop", name))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, name, sem, requireVisible, pull)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, name string, sem *semaphore.Weighted, requireVisible bool, pull func(context.Context) error) {
	if requireVisible && !s.visible.Load() {
		return
	}
	if !s.store.SignedIn() {
		return
	}
	if !sem.TryAcquire(1) {
		s.metrics.IncSkipped(name)
		s.logger.Info("pull still in flight, tick dropped", zap.String("loop", name))
		s.bus.Publish(bus.NewEvent(bus.KindSyncSkipped, name))
		return
	}
	go func() {
		defer sem.Release(1)
		if err := pull(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("background pull failed", zap.String("loop", name), zap.Error(err))
		}
	}()
}

// pullContext detaches the request from ctx so that Stop does not turn an
// in-flight read into a spurious Unreachable; the result is dropped instead.
func (s *Scheduler) pullContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PullTimeout)
}

func (s *Scheduler) pullGeneral(ctx context.Context, notify bool) error {
	epoch := s.store.Epoch()
	pctx, cancel := s.pullContext(ctx)
	defer cancel()

	start := time.Now()
	remote, out := s.puller.Bootstrap(pctx)
	s.metrics.ObservePull(LoopGeneral, out.Kind.String(), time.Since(start))
	if err := ctx.Err(); err != nil {
		return err
	}

	// A failed read resolves to an empty state and is merged like any other;
	// the merge keeps every local record.
	if err := s.store.Dispatch(ctx, state.MergeRemote{Epoch: epoch, State: remote, Notify: notify}); err != nil {
		return err
	}
	s.bus.Publish(bus.NewEvent(bus.KindSyncGeneral, out.Kind.String()))
	if out.Kind != gateway.Confirmed {
		return &PullError{Loop: LoopGeneral, Outcome: out}
	}
	s.recon.MarkPulled(LoopGeneral, time.Now())
	return nil
}

func (s *Scheduler) pullChats(ctx context.Context) error {
	epoch := s.store.Epoch()
	pctx, cancel := s.pullContext(ctx)
	defer cancel()

	start := time.Now()
	chats, out := s.puller.Chats(pctx)
	s.metrics.ObservePull(LoopChats, out.Kind.String(), time.Since(start))
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.store.Dispatch(ctx, state.MergeChats{Epoch: epoch, Chats: chats}); err != nil {
		return err
	}
	s.bus.Publish(bus.NewEvent(bus.KindSyncChats, out.Kind.String()))
	if out.Kind != gateway.Confirmed {
		return &PullError{Loop: LoopChats, Outcome: out}
	}
	s.recon.MarkPulled(LoopChats, time.Now())
	return nil
}
