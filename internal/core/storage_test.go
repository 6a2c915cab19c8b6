package core_test

import (
	"context"
	"path/filepath"
	"testing"

	"alquimist/internal/core"
)

func TestOpenPersistentStoreDrivers(t *testing.T) {
	ctx := context.Background()
	engine := core.NewDefaultRulesEngine()

	mem, err := core.OpenPersistentStore(ctx, core.StorageConfig{}, engine)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if err := core.CloseStore(mem); err != nil {
		t.Fatalf("closing memory store should be a no-op: %v", err)
	}

	if _, err := core.OpenPersistentStore(ctx, core.StorageConfig{Driver: "redis"}, engine); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := core.StorageConfig{Driver: core.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "alquimist.db")}

	store, err := core.OpenPersistentStore(ctx, cfg, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	svc := core.NewService(store)
	lab, _, err := svc.CreateLaboratory(ctx, core.LaboratoryInput{Name: ptr("Lab Norte"), Address: ptr("Av. Principal 123")})
	if err != nil {
		t.Fatalf("create lab: %v", err)
	}
	if err := core.CloseStore(store); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := core.OpenPersistentStore(ctx, cfg, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	t.Cleanup(func() { _ = core.CloseStore(reopened) })
	got, err := core.NewService(reopened).GetLaboratory(ctx, lab.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Name != "Lab Norte" {
		t.Fatalf("unexpected lab %+v", got)
	}
}
