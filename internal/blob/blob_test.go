package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	for _, cfg := range []Config{
		{Driver: DriverMemory},
		{FSRoot: filepath.Join(t.TempDir(), "backups")},
	} {
		store, err := Open(ctx, cfg)
		if err != nil {
			t.Fatalf("open %q: %v", cfg.Driver, err)
		}
		if _, err := store.Put(ctx, "chat-backup-1.json", bytes.NewBufferString("{}"), PutOptions{ContentType: "application/json"}); err != nil {
			t.Fatalf("%s put: %v", store.Driver(), err)
		}
		if _, err := store.Put(ctx, "chat-backup-1.json", bytes.NewBufferString("{}"), PutOptions{}); !errors.Is(err, ErrExists) {
			t.Fatalf("%s: expected ErrExists, got %v", store.Driver(), err)
		}
		_, rc, err := store.Get(ctx, "chat-backup-1.json")
		if err != nil {
			t.Fatalf("%s get: %v", store.Driver(), err)
		}
		body, _ := io.ReadAll(rc)
		_ = rc.Close()
		if string(body) != "{}" {
			t.Fatalf("%s: unexpected body %q", store.Driver(), body)
		}
	}

	if _, err := Open(ctx, Config{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
