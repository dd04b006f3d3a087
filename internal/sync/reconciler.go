package sync

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/matheus3301/clinicsync/internal/store"
	"go.uber.org/zap"
)

// Reconciler manages reconciliation checkpoints.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, logger: logger}
}

// UpdateCheckpoint updates a sync checkpoint value.
func (r *Reconciler) UpdateCheckpoint(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := r.db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetCheckpoint retrieves a sync checkpoint value, or "" if unset.
func (r *Reconciler) GetCheckpoint(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// MarkPulled records a successful pull of loop at t.
func (r *Reconciler) MarkPulled(loop string, t time.Time) {
	if r == nil {
		return
	}
	if err := r.UpdateCheckpoint(pullKey(loop), strconv.FormatInt(t.UnixMilli(), 10)); err != nil {
		r.logger.Warn("failed to store checkpoint", zap.String("loop", loop), zap.Error(err))
	}
}

// LastPull returns when loop last pulled successfully; zero if never.
func (r *Reconciler) LastPull(loop string) (time.Time, error) {
	v, err := r.GetCheckpoint(pullKey(loop))
	if err != nil || v == "" {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

func pullKey(loop string) string {
	return "last_pull." + loop
}
