package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

func connectColumn(t *testing.T) (*ColumnConnection, *ColumnSession) {
	t.Helper()
	c := NewColumnConnection(types.Config{DataDir: t.TempDir(), Database: "test"})
	s, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { c.Close(context.Background()) })
	return c, s.(*ColumnSession)
}

func TestConnect_CreatesDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	c := NewColumnConnection(types.Config{DataDir: dir})
	if c.Connected() {
		t.Fatal("new connection reports connected")
	}
	if _, err := c.Databases(context.Background()); !errors.Is(err, types.ErrConnect) {
		t.Fatalf("expected ErrConnect before Connect, got %v", err)
	}

	s, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !c.Connected() {
		t.Error("connection not connected after Connect")
	}
	if s.Database() != DefaultDatabase {
		t.Errorf("database = %q, want %q", s.Database(), DefaultDatabase)
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultDatabase+".db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if got := s.Description()["driver"]; got != "sqlite" {
		t.Errorf("description driver = %v", got)
	}

	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Errorf("second Close returned %v", err)
	}
	if _, err := s.ACL(context.Background()); !errors.Is(err, types.ErrConnect) {
		t.Errorf("expected ErrConnect on session after Close, got %v", err)
	}
}

func TestConnect_InvalidConfig(t *testing.T) {
	c := NewColumnConnection(types.Config{DataDir: t.TempDir(), Port: -1})
	_, err := c.Connect(context.Background())
	if !errors.Is(err, types.ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
	if !errors.Is(err, types.ErrPortRange) {
		t.Errorf("expected ErrPortRange in chain, got %v", err)
	}
}

func TestDatabaseLifecycle(t *testing.T) {
	ctx := context.Background()
	c, _ := connectColumn(t)

	if _, err := c.CreateDatabase(ctx, "other"); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	if _, err := c.CreateDatabase(ctx, "other"); !errors.Is(err, types.ErrDatabaseCreation) {
		t.Errorf("expected ErrDatabaseCreation on duplicate, got %v", err)
	}
	if _, err := c.CreateDatabase(ctx, "other", types.Params{"not_exists": true}); err != nil {
		t.Errorf("CreateDatabase with not_exists failed: %v", err)
	}
	if _, err := c.CreateDatabase(ctx, "../escape"); !errors.Is(err, types.ErrDatabaseCreation) {
		t.Errorf("expected ErrDatabaseCreation for bad name, got %v", err)
	}

	ok, err := c.HasDatabase(ctx, "other")
	if err != nil || !ok {
		t.Fatalf("HasDatabase = %v, %v", ok, err)
	}

	res, err := c.Databases(ctx)
	if err != nil {
		t.Fatalf("Databases failed: %v", err)
	}
	names := res.Data().([]string)
	if len(names) != 2 || names[0] != "other" || names[1] != "test" {
		t.Errorf("Databases = %v", names)
	}

	show, err := c.ShowDatabase(ctx, "test")
	if err != nil {
		t.Fatalf("ShowDatabase failed: %v", err)
	}
	if show.Data().(map[string]any)["name"] != "test" {
		t.Errorf("ShowDatabase = %v", show.Data())
	}

	if _, err := c.DeleteDatabase(ctx, "test"); !errors.Is(err, types.ErrDatabaseDeletion) {
		t.Errorf("expected ErrDatabaseDeletion for database in use, got %v", err)
	}
	if _, err := c.DeleteDatabase(ctx, "other"); err != nil {
		t.Fatalf("DeleteDatabase failed: %v", err)
	}
	if _, err := c.DeleteDatabase(ctx, "other"); !errors.Is(err, types.ErrDatabaseDeletion) {
		t.Errorf("expected ErrDatabaseDeletion for missing database, got %v", err)
	}
	if _, err := c.DeleteDatabase(ctx, "other", types.Params{"if_exists": true}); err != nil {
		t.Errorf("DeleteDatabase with if_exists failed: %v", err)
	}
	if ok, _ := c.HasDatabase(ctx, "other"); ok {
		t.Error("database still exists after delete")
	}
}

func TestSession_CloseAndACL(t *testing.T) {
	ctx := context.Background()
	_, s := connectColumn(t)

	acl, err := s.ACL(ctx)
	if err != nil {
		t.Fatalf("ACL failed: %v", err)
	}
	if len(acl.Data().([]string)) != 0 {
		t.Errorf("ACL = %v, want empty", acl.Data())
	}
	if _, err := s.Grant(ctx, "test", "u", "r"); !errors.Is(err, types.ErrSessionACL) {
		t.Errorf("expected ErrSessionACL, got %v", err)
	}
	if _, err := s.NewUser(ctx, "u", "p"); !errors.Is(err, types.ErrSessionACL) {
		t.Errorf("expected ErrSessionACL, got %v", err)
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(ctx); !errors.Is(err, types.ErrSessionClosing) {
		t.Errorf("expected ErrSessionClosing, got %v", err)
	}
	if _, err := s.Get(ctx, "t"); !errors.Is(err, types.ErrSession) {
		t.Errorf("expected ErrSession after Close, got %v", err)
	}
}

func TestBatch_Execute(t *testing.T) {
	ctx := context.Background()
	_, s := connectColumn(t)

	b, err := NewBatch(s,
		Statement{SQL: "CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER)"},
		Statement{SQL: "INSERT INTO kv VALUES (?, ?)", Args: []any{"a", 1}},
		Statement{SQL: "INSERT INTO kv VALUES (?, ?)", Args: []any{"b", 2}},
	)
	if err != nil {
		t.Fatalf("NewBatch failed: %v", err)
	}
	res, err := s.Call(ctx, b)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got := res.Data().([]int64); len(got) != 3 || got[1] != 1 || got[2] != 1 {
		t.Errorf("affected = %v, want one entry per statement", got)
	}
	if s.ItemCount() != res.Len() {
		t.Errorf("ItemCount = %d, want %d", s.ItemCount(), res.Len())
	}

	// A failing statement rolls the whole batch back.
	b, _ = NewBatch(s,
		Statement{SQL: "INSERT INTO kv VALUES (?, ?)", Args: []any{"c", 3}},
		Statement{SQL: "INSERT INTO kv VALUES (?, ?)", Args: []any{"a", 9}},
	)
	if _, err := b.Execute(ctx); !errors.Is(err, types.ErrSession) {
		t.Fatalf("expected ErrSession, got %v", err)
	}
	rows, err := s.Get(ctx, "kv")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(rows.Data()) != 2 {
		t.Errorf("rows = %v, want 2 after rollback", rows.Data())
	}

	if _, err := NewBatch(nil); !errors.Is(err, types.ErrSession) {
		t.Errorf("expected ErrSession for foreign session, got %v", err)
	}
}
