package store

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestMigrateSchemaHasRequiredColumns(t *testing.T) {
	db := testDB(t)

	requiredOps := []struct {
		desc  string
		query string
		args  []any
	}{
		{"queue request", "INSERT INTO queued_requests (id, method, url, body, enqueued_at) VALUES (?, ?, ?, ?, ?)", []any{"r1", "POST", "/clients", []byte("{}"), 1000}},
		{"store credential", "INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)", []any{"token", "t", 1000}},
		{"set sync state", "INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)", []any{"k", "v", 1000}},
	}

	for _, op := range requiredOps {
		t.Run(op.desc, func(t *testing.T) {
			if _, err := db.Exec(op.query, op.args...); err != nil {
				t.Fatalf("%s failed: %v", op.desc, err)
			}
		})
	}
}

func TestQueueFIFO(t *testing.T) {
	db := testDB(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := db.AppendRequest(QueuedRequest{ID: id, Method: "POST", URL: "/clients", Body: []byte(`{"id":"` + id + `"}`)}); err != nil {
			t.Fatal(err)
		}
	}

	head, err := db.OldestRequest()
	if err != nil {
		t.Fatal(err)
	}
	if head == nil || head.ID != "a" {
		t.Fatalf("head = %+v, want a", head)
	}
	if string(head.Body) != `{"id":"a"}` {
		t.Errorf("body = %s", head.Body)
	}

	if err := db.RemoveRequest("a"); err != nil {
		t.Fatal(err)
	}
	reqs, err := db.ListRequests(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 2 || reqs[0].ID != "b" || reqs[1].ID != "c" {
		t.Fatalf("got %+v, want [b c]", reqs)
	}

	limited, err := db.ListRequests(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].ID != "b" {
		t.Errorf("limited = %+v, want [b]", limited)
	}
}

func TestAppendRequestDuplicateIDIgnored(t *testing.T) {
	db := testDB(t)

	req := QueuedRequest{ID: "x", Method: "PUT", URL: "/patients/1", EnqueuedAt: time.UnixMilli(5000)}
	if err := db.AppendRequest(req); err != nil {
		t.Fatal(err)
	}
	req.URL = "/patients/2"
	if err := db.AppendRequest(req); err != nil {
		t.Fatal(err)
	}

	n, err := db.CountRequests()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	head, _ := db.OldestRequest()
	if head.URL != "/patients/1" {
		t.Errorf("url = %q, want first write to win", head.URL)
	}
	if !head.EnqueuedAt.Equal(time.UnixMilli(5000)) {
		t.Errorf("enqueued_at = %v", head.EnqueuedAt)
	}
}

func TestAppendRequestRequiresID(t *testing.T) {
	db := testDB(t)
	if err := db.AppendRequest(QueuedRequest{Method: "POST", URL: "/x"}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestOldestRequestEmpty(t *testing.T) {
	db := testDB(t)
	head, err := db.OldestRequest()
	if err != nil {
		t.Fatal(err)
	}
	if head != nil {
		t.Errorf("head = %+v, want nil", head)
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinic.db")
	db, _, err := OpenMigrated(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AppendRequest(QueuedRequest{ID: "r1", Method: "POST", URL: "/sales"}); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, res, err := OpenMigrated(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	if res.Changed {
		t.Error("reopen should not re-run migrations")
	}
	n, err := db.CountRequests()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count after reopen = %d, want 1", n)
	}
}

func TestTokenLifecycle(t *testing.T) {
	db := testDB(t)

	tok, err := db.Token()
	if err != nil {
		t.Fatal(err)
	}
	if tok != "" {
		t.Fatalf("token = %q, want empty", tok)
	}

	if err := db.SaveToken("abc", "u1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveToken("def", "u2"); err != nil {
		t.Fatal(err)
	}
	tok, _ = db.Token()
	uid, _ := db.UserID()
	if tok != "def" || uid != "u2" {
		t.Errorf("got (%q, %q), want (def, u2)", tok, uid)
	}

	if err := db.ClearToken(); err != nil {
		t.Fatal(err)
	}
	tok, _ = db.Token()
	uid, _ = db.UserID()
	if tok != "" || uid != "" {
		t.Errorf("after clear got (%q, %q)", tok, uid)
	}
}
