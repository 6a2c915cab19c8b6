package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"alquimist/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	var labID string
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		lab, e := tx.CreateLaboratory(domain.Laboratory{Name: "Lab Central Norte", Address: "Av. Principal 123"})
		if e != nil {
			return e
		}
		labID = lab.ID
		_, e = tx.CreateMachine(domain.Machine{LabID: lab.ID, Name: "Analizador", Status: domain.MachineOperational})
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	_ = store.Close()

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	state := reloaded.ExportState()
	if len(state.Laboratories) != 1 || state.Laboratories[0].ID != labID {
		t.Fatalf("expected laboratory reloaded, got %+v", state.Laboratories)
	}
	if len(state.Machines) != 1 || state.Machines[0].LabID != labID {
		t.Fatalf("expected machine reloaded, got %+v", state.Machines)
	}
}

func TestSQLiteStoreWritesOnlyTouchedBuckets(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateClient(domain.Client{Name: "Juan Pérez"})
		return e
	}); err != nil {
		t.Fatalf("create client: %v", err)
	}
	rows, err := store.DB().Query(`SELECT bucket FROM state ORDER BY bucket`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var buckets []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			t.Fatalf("scan: %v", err)
		}
		buckets = append(buckets, b)
	}
	if len(buckets) != 1 || buckets[0] != "clients" {
		t.Fatalf("expected only clients bucket written, got %v", buckets)
	}
}

func TestSQLiteStoreFailedTransactionSkipsPersist(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteClient("missing")
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var n int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no buckets written, got %d", n)
	}
}
