package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetCredential stores a credential value under key.
func (db *DB) SetCredential(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO credentials (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set credential %s: %w", key, err)
	}
	return nil
}

// Credential returns the value stored under key, or "" when absent.
func (db *DB) Credential(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %s: %w", key, err)
	}
	return value, nil
}

// SaveToken stores the bearer token and the user it was issued to.
func (db *DB) SaveToken(token, userID string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, kv := range [][2]string{{KeyToken, token}, {KeyUserID, userID}} {
		if _, err := tx.Exec(`
			INSERT INTO credentials (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			kv[0], kv[1], now); err != nil {
			return fmt.Errorf("save %s: %w", kv[0], err)
		}
	}
	return tx.Commit()
}

// Token returns the stored bearer token, or "" when signed out.
func (db *DB) Token() (string, error) {
	return db.Credential(KeyToken)
}

// UserID returns the user the stored token belongs to.
func (db *DB) UserID() (string, error) {
	return db.Credential(KeyUserID)
}

// ClearToken removes the stored bearer token and user.
func (db *DB) ClearToken() error {
	if _, err := db.Exec(`DELETE FROM credentials WHERE key IN (?, ?)`, KeyToken, KeyUserID); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
