package sync

import (
	"context"
	"errors"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/matheus3301/clinicsync/internal/bus"
	"github.com/matheus3301/clinicsync/internal/gateway"
	"github.com/matheus3301/clinicsync/internal/metrics"
	"github.com/matheus3301/clinicsync/internal/model"
	"github.com/matheus3301/clinicsync/internal/state"
	"github.com/matheus3301/clinicsync/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

type fakePuller struct {
	mu      gosync.Mutex
	remote  model.RemoteState
	chats   []model.ChatMessage
	kind    gateway.Kind
	block   chan struct{}
	started chan struct{}
	calls   int // chat pulls
	general int // bootstrap pulls
}

func (f *fakePuller) Bootstrap(context.Context) (model.RemoteState, gateway.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.general++
	if f.kind != gateway.Confirmed {
		return model.RemoteState{}, gateway.Outcome{Kind: f.kind}
	}
	return f.remote, gateway.Outcome{Kind: gateway.Confirmed, Status: 200}
}

func (f *fakePuller) Chats(context.Context) ([]model.ChatMessage, gateway.Outcome) {
	f.mu.Lock()
	f.calls++
	block, started := f.block, f.started
	f.mu.Unlock()
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.kind != gateway.Confirmed {
		return nil, gateway.Outcome{Kind: f.kind}
	}
	return append([]model.ChatMessage(nil), f.chats...), gateway.Outcome{Kind: gateway.Confirmed, Status: 200}
}

func (f *fakePuller) setChats(chats []model.ChatMessage) {
	f.mu.Lock()
	f.chats = chats
	f.mu.Unlock()
}

func (f *fakePuller) setKind(k gateway.Kind) {
	f.mu.Lock()
	f.kind = k
	f.mu.Unlock()
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func remoteFor(role model.Role) model.RemoteState {
	return model.RemoteState{
		Tenants:  []model.Tenant{{ID: "t1"}},
		Branches: []model.Branch{{ID: "b1", TenantID: "t1", Active: true}},
		Users:    []model.User{{ID: "u1", TenantID: "t1", BranchID: "b1", Role: role, ClientID: "c1"}},
	}
}

func clientMsg(id string) model.ChatMessage {
	return model.ChatMessage{ID: id, TenantID: "t1", ClientID: "c1", Sender: model.SenderClient, Content: "hello", Timestamp: t0}
}

func signedInStore(t *testing.T, b *bus.Bus) *state.Store {
	t.Helper()
	st := state.NewStore(state.NewReducer(), nil, b, nil, zap.NewNop())
	if err := st.Dispatch(context.Background(), state.Login{UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	return st
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, _, err := store.OpenMigrated(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBootstrapNeverNotifies(t *testing.T) {
	remote := remoteFor(model.RoleStaff)
	remote.Chats = []model.ChatMessage{clientMsg("m1")}
	p := &fakePuller{remote: remote}
	st := signedInStore(t, nil)
	s := New(p, st, nil, nil, nil, zap.NewNop(), Config{})

	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := st.Snapshot()
	if len(snap.Chats) != 1 || len(snap.Notifications) != 0 {
		t.Errorf("chats=%d notifications=%d, want 1 and 0", len(snap.Chats), len(snap.Notifications))
	}
	if snap.CurrentTenantID != "t1" || snap.CurrentBranchID != "b1" {
		t.Errorf("context = %s/%s", snap.CurrentTenantID, snap.CurrentBranchID)
	}
}

func TestBootstrapFailureLeavesEmptySnapshot(t *testing.T) {
	p := &fakePuller{kind: gateway.Unreachable}
	st := signedInStore(t, nil)
	s := New(p, st, nil, nil, nil, zap.NewNop(), Config{})

	err := s.Bootstrap(context.Background())
	if !errors.Is(err, ErrPullFailed) {
		t.Fatalf("err = %v, want ErrPullFailed", err)
	}
	snap := st.Snapshot()
	if len(snap.Clients) != 0 || snap.CurrentUserID != "u1" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestNotificationDedupAcrossTicks(t *testing.T) {
	p := &fakePuller{remote: remoteFor(model.RoleStaff)}
	st := signedInStore(t, nil)
	m := metrics.New()
	s := New(p, st, nil, nil, m, zap.NewNop(), Config{})
	ctx := context.Background()

	if err := s.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	p.setChats([]model.ChatMessage{clientMsg("m1")})
	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	notes := st.Snapshot().Notifications
	if len(notes) != 1 || notes[0].ID != "chat:m1" {
		t.Errorf("notifications = %+v, want exactly chat:m1", notes)
	}
	if got := testutil.ToFloat64(m.SyncPulls.WithLabelValues(LoopChats, "confirmed")); got != 2 {
		t.Errorf("chat pulls = %v, want 2", got)
	}
}

func TestRefreshFailureKeepsLocalState(t *testing.T) {
	p := &fakePuller{remote: remoteFor(model.RoleOwner)}
	st := signedInStore(t, nil)
	s := New(p, st, nil, nil, nil, zap.NewNop(), Config{})
	ctx := context.Background()

	if err := s.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	if err := st.Dispatch(ctx, state.AddClient{Client: model.Client{ID: "c1", Name: "Ana"}}); err != nil {
		t.Fatal(err)
	}

	p.setKind(gateway.Unreachable)
	err := s.Refresh(ctx)
	var pe *PullError
	if !errors.As(err, &pe) || pe.Outcome.Kind != gateway.Unreachable {
		t.Fatalf("err = %v, want PullError(unreachable)", err)
	}
	if !errors.Is(err, ErrPullFailed) {
		t.Error("refresh error should match ErrPullFailed")
	}
	if n := len(st.Snapshot().Clients); n != 1 {
		t.Errorf("clients = %d, want local client kept", n)
	}
}

func TestTickDroppedWhilePullInFlight(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	p := &fakePuller{remote: remoteFor(model.RoleStaff), block: block, started: started}
	b := bus.New()
	skipped, unsub := b.Subscribe(bus.KindSyncSkipped, 16)
	defer unsub()
	m := metrics.New()
	st := signedInStore(t, nil)
	s := New(p, st, nil, b, m, zap.NewNop(), Config{GeneralInterval: time.Hour, ChatInterval: 10 * time.Millisecond})

	s.Start(context.Background())
	defer func() { _ = s.Stop() }()
	defer close(block)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("chat pull never started")
	}
	select {
	case evt := <-skipped:
		if evt.Payload != LoopChats {
			t.Errorf("skipped loop = %v", evt.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick was dropped")
	}

	p.mu.Lock()
	calls := p.calls
	p.mu.Unlock()
	if calls != 1 {
		t.Errorf("calls = %d, want 1 while the first pull is blocked", calls)
	}
	if got := testutil.ToFloat64(m.SyncSkipped.WithLabelValues(LoopChats)); got < 1 {
		t.Errorf("skipped metric = %v", got)
	}
}

func TestHiddenSessionKeepsChatLoop(t *testing.T) {
	p := &fakePuller{remote: remoteFor(model.RoleStaff)}
	st := signedInStore(t, nil)
	s := New(p, st, nil, nil, nil, zap.NewNop(), Config{GeneralInterval: 5 * time.Millisecond, ChatInterval: 5 * time.Millisecond})
	ctx := context.Background()

	if err := s.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	p.setChats([]model.ChatMessage{clientMsg("m1")})
	s.SetVisible(false)

	s.Start(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(st.Snapshot().Notifications) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}

	snap := st.Snapshot()
	if len(snap.Chats) != 1 {
		t.Errorf("chats = %d, want 1 while hidden", len(snap.Chats))
	}
	if len(snap.Notifications) != 1 || snap.Notifications[0].ID != "chat:m1" {
		t.Errorf("notifications = %+v, want chat:m1 while hidden", snap.Notifications)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.general != 1 {
		t.Errorf("general pulls = %d, want only the bootstrap while hidden", p.general)
	}
	if p.calls == 0 {
		t.Error("chat loop did not pull while hidden")
	}
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	p := &fakePuller{remote: remoteFor(model.RoleStaff), chats: []model.ChatMessage{clientMsg("late")}, block: block, started: started}
	st := signedInStore(t, nil)
	s := New(p, st, nil, nil, nil, zap.NewNop(), Config{GeneralInterval: time.Hour, ChatInterval: 10 * time.Millisecond})

	s.Start(context.Background())
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("chat pull never started")
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	close(block)

	// Give the detached pull time to return.
	time.Sleep(50 * time.Millisecond)
	if n := len(st.Snapshot().Chats); n != 0 {
		t.Errorf("chats = %d, want in-flight result discarded", n)
	}
}

func TestMergeAfterLogoutIgnored(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	p := &fakePuller{chats: []model.ChatMessage{clientMsg("m1")}, block: block, started: started}
	st := signedInStore(t, nil)
	s := New(p, st, nil, nil, nil, zap.NewNop(), Config{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.pullChats(ctx) }()
	<-started
	if err := st.Dispatch(ctx, state.Logout{}); err != nil {
		t.Fatal(err)
	}
	if err := st.Dispatch(ctx, state.Login{UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	close(block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if n := len(st.Snapshot().Chats); n != 0 {
		t.Errorf("chats = %d, previous session's pull leaked into the new one", n)
	}
}

func TestCheckpointsRecorded(t *testing.T) {
	db := testDB(t)
	recon := NewReconciler(db, zap.NewNop())
	p := &fakePuller{remote: remoteFor(model.RoleStaff)}
	st := signedInStore(t, nil)
	s := New(p, st, recon, nil, nil, zap.NewNop(), Config{})

	before, err := recon.LastPull(LoopGeneral)
	if err != nil || !before.IsZero() {
		t.Fatalf("before = %v, %v", before, err)
	}
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, loop := range []string{LoopGeneral, LoopChats} {
		at, err := recon.LastPull(loop)
		if err != nil {
			t.Fatal(err)
		}
		if at.IsZero() || time.Since(at) > time.Minute {
			t.Errorf("%s checkpoint = %v", loop, at)
		}
	}
}

func TestReconcilerCheckpointRoundTrip(t *testing.T) {
	r := NewReconciler(testDB(t), nil)
	if v, err := r.GetCheckpoint("missing"); err != nil || v != "" {
		t.Fatalf("got (%q, %v)", v, err)
	}
	if err := r.UpdateCheckpoint("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateCheckpoint("k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.GetCheckpoint("k"); v != "v2" {
		t.Errorf("value = %q, want v2", v)
	}
}
