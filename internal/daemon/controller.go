package daemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/clinicsync/internal/state"
	"github.com/matheus3301/clinicsync/internal/status"
	"github.com/matheus3301/clinicsync/internal/store"
	intsync "github.com/matheus3301/clinicsync/internal/sync"
	"go.uber.org/zap"
)

// Controller drives sign-in and sign-out: it persists the credential, moves
// the status machine, resets the snapshot and starts or stops reconciliation.
type Controller struct {
	db      *store.DB
	machine *status.Machine
	store   *state.Store
	sched   *intsync.Scheduler
	logger  *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a controller. Loops it starts live until Stop.
func NewController(db *store.DB, machine *status.Machine, st *state.Store, sched *intsync.Scheduler, logger *zap.Logger) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		db:      db,
		machine: machine,
		store:   st,
		sched:   sched,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Resume restores a stored session in the background, or moves to
// SIGNED_OUT when no credential is stored.
func (c *Controller) Resume() error {
	token, err := c.db.Token()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	userID, err := c.db.UserID()
	if err != nil {
		return fmt.Errorf("read user id: %w", err)
	}
	if token == "" || userID == "" {
		c.logger.Info("no stored credential, sign-in required")
		return c.machine.Transition(status.SignedOut)
	}

	c.logger.Info("resuming stored session", zap.String("user_id", userID))
	go func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.startLocked(c.ctx, userID); err != nil {
			c.logger.Error("resume failed", zap.Error(err))
		}
	}()
	return nil
}

// SignIn stores the credential and starts a fresh session for userID. An
// existing session is torn down first.
func (c *Controller) SignIn(ctx context.Context, token, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.SaveToken(token, userID); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	switch c.machine.Current() {
	case status.Booting, status.SignedOut:
	default:
		if err := c.endLocked(ctx); err != nil {
			return err
		}
	}
	return c.startLocked(ctx, userID)
}

// SignOut stops reconciliation, clears the snapshot and forgets the
// credential. Queued requests stay on disk for the next sign-in.
func (c *Controller) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.endLocked(ctx); err != nil {
		return err
	}
	if err := c.db.ClearToken(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Stop ends background work started by the controller.
func (c *Controller) Stop() error {
	c.cancel()
	return c.sched.Stop()
}

func (c *Controller) startLocked(ctx context.Context, userID string) error {
	if err := c.machine.Transition(status.Connecting); err != nil {
		return err
	}
	if err := c.store.Dispatch(ctx, state.Login{UserID: userID}); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := c.sched.Bootstrap(ctx); err != nil {
		// The loops keep retrying; local state stays usable meanwhile.
		c.logger.Warn("bootstrap failed", zap.Error(err))
	}
	c.sched.Start(c.ctx)
	return nil
}

func (c *Controller) endLocked(ctx context.Context) error {
	if err := c.sched.Stop(); err != nil {
		c.logger.Warn("stopping reconciliation", zap.Error(err))
	}
	if err := c.store.Dispatch(context.WithoutCancel(ctx), state.Logout{}); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if c.machine.Current() == status.SignedOut {
		return nil
	}
	return c.machine.Transition(status.SignedOut)
}
