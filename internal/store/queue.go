package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AppendRequest adds a request to the tail of the queue. Appending an ID that
// is already queued is a no-op.
func (db *DB) AppendRequest(req QueuedRequest) error {
	if req.ID == "" {
		return errors.New("append request: empty id")
	}
	enqueued := req.EnqueuedAt
	if enqueued.IsZero() {
		enqueued = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO queued_requests (id, method, url, body, enqueued_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		req.ID, req.Method, req.URL, req.Body, enqueued.UnixMilli())
	if err != nil {
		return fmt.Errorf("append request %s: %w", req.ID, err)
	}
	return nil
}

// OldestRequest returns the head of the queue, or nil when it is empty.
func (db *DB) OldestRequest() (*QueuedRequest, error) {
	row := db.QueryRow(`
		SELECT seq, id, method, url, body, enqueued_at
		FROM queued_requests ORDER BY seq ASC LIMIT 1`)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("oldest request: %w", err)
	}
	return req, nil
}

// ListRequests returns queued requests in FIFO order. limit <= 0 means all.
func (db *DB) ListRequests(limit int) ([]QueuedRequest, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT seq, id, method, url, body, enqueued_at
		FROM queued_requests ORDER BY seq ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reqs []QueuedRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}

// RemoveRequest deletes a request by ID. Removing an absent ID is a no-op.
func (db *DB) RemoveRequest(id string) error {
	if _, err := db.Exec(`DELETE FROM queued_requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove request %s: %w", id, err)
	}
	return nil
}

// CountRequests returns the number of queued requests.
func (db *DB) CountRequests() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM queued_requests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (*QueuedRequest, error) {
	var (
		req      QueuedRequest
		enqueued int64
	)
	if err := s.Scan(&req.Seq, &req.ID, &req.Method, &req.URL, &req.Body, &enqueued); err != nil {
		return nil, err
	}
	req.EnqueuedAt = time.UnixMilli(enqueued)
	return &req, nil
}
