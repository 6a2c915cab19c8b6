package testutil

import (
	"context"
	"testing"
)

func TestStubDBUpsertsBuckets(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	t.Cleanup(func() { _ = db.Close() })

	for _, payload := range []string{`[1]`, `[1,2]`} {
		if _, err := db.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2)`, "clients", []byte(payload)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if got := string(conn.Buckets["clients"]); got != `[1,2]` {
		t.Fatalf("expected upserted payload, got %s", got)
	}

	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var n int
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			t.Fatalf("scan: %v", err)
		}
		n++
	}
	if n != 1 {
		t.Fatalf("expected one bucket row, got %d", n)
	}
}

func TestStubDBFailures(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	t.Cleanup(func() { _ = db.Close() })
	conn.FailPing = true
	if err := db.PingContext(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailPing = false
	conn.FailUpsert = map[string]bool{"users": true}
	if _, err := db.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2)`, "users", []byte(`[]`)); err == nil {
		t.Fatalf("expected upsert failure")
	}
}
