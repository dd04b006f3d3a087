package state

import (
	"context"
	"sync"

	"github.com/matheus3301/clinicsync/internal/bus"
	"github.com/matheus3301/clinicsync/internal/metrics"
	"github.com/matheus3301/clinicsync/internal/model"
	"go.uber.org/zap"
)

// EffectSink receives effects in dispatch order. Submit must not block.
type EffectSink interface {
	Submit(effects []model.Effect)
}

// ScopeFunc is told the active tenant and branch whenever they change.
type ScopeFunc func(tenantID, branchID string)

// Store owns the session snapshot. Every write goes through Dispatch, which
// serializes reductions so concurrent writers cannot lose updates.
type Store struct {
	mu      sync.Mutex
	snap    model.Snapshot
	reducer Reducer
	sink    EffectSink
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
	scopes  []ScopeFunc
}

// NewStore creates a store with an empty snapshot. sink, b and m may be nil.
func NewStore(r Reducer, sink EffectSink, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		reducer: r,
		sink:    sink,
		bus:     b,
		metrics: m,
		logger:  logger,
	}
}

// OnScopeChange registers fn; it runs under the store lock and must be quick.
func (s *Store) OnScopeChange(fn ScopeFunc) {
	s.mu.Lock()
	s.scopes = append(s.scopes, fn)
	s.mu.Unlock()
}

// Dispatch applies a to the current snapshot, publishes the change and
// hands the resulting effects to the sink. It returns ctx.Err() without
// applying anything if ctx is already done.
func (s *Store) Dispatch(ctx context.Context, a Action) error {
	_, err := s.Apply(ctx, a)
	return err
}

// Apply is Dispatch that also reports whether a changed the snapshot. An
// action the reducer ignored (unknown record, missing field) reports false.
func (s *Store) Apply(ctx context.Context, a Action) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	prev := s.snap
	res := s.reducer.Reduce(prev, a)
	if !res.Changed {
		s.mu.Unlock()
		return false, nil
	}
	s.snap = res.Snapshot
	if prev.CurrentTenantID != res.Snapshot.CurrentTenantID || prev.CurrentBranchID != res.Snapshot.CurrentBranchID {
		for _, fn := range s.scopes {
			fn(res.Snapshot.CurrentTenantID, res.Snapshot.CurrentBranchID)
		}
	}
	if s.sink != nil && len(res.Effects) > 0 {
		s.sink.Submit(res.Effects)
	}
	s.mu.Unlock()

	s.bus.Publish(bus.NewEvent(bus.KindStateChanged, a.Kind()))
	for _, n := range res.Notifications {
		s.metrics.AddNotifications(string(n.Type), 1)
		s.bus.Publish(bus.NewEvent(bus.KindNotificationCreated, n))
	}
	if len(res.Notifications) > 0 {
		s.logger.Info("notifications created", zap.String("action", a.Kind()), zap.Int("count", len(res.Notifications)))
	}
	return true, nil
}

// Snapshot returns a deep copy of the current snapshot.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Epoch returns the current session epoch.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Epoch
}

// SignedIn reports whether a user session is active.
func (s *Store) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.CurrentUserID != ""
}
