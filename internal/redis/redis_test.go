package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/nosqlapi/pkg/kvdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// newTestSession connects to a miniredis server.
func newTestSession(t *testing.T) (*Connection, *Session, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	c := NewConnection(types.Config{Database: "app"}, WithClient(client))
	s, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { c.Close(context.Background()) })
	return c, s.(*Session), mr
}

func TestOptions(t *testing.T) {
	opts := Options(types.Config{Host: "cache", Port: 6380, User: "u", Password: "p", Options: map[string]any{"db": 3}})
	if opts.Addr != "cache:6380" || opts.Username != "u" || opts.Password != "p" || opts.DB != 3 {
		t.Errorf("Options = %+v", opts)
	}
	if opts.TLSConfig != nil {
		t.Error("TLS enabled without ssl")
	}
	opts = Options(types.Config{SSL: true})
	if opts.Addr != "localhost:6379" || opts.TLSConfig == nil {
		t.Errorf("default Options = %+v", opts)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := goredis.NewClient(&goredis.Options{Addr: addr, MaxRetries: -1})
	c := NewConnection(types.Config{}, WithClient(client))
	if _, err := c.Connect(context.Background()); !errors.Is(err, types.ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
	if c.Connected() {
		t.Error("connection reports connected after failed Connect")
	}
}

func TestConnection_Databases(t *testing.T) {
	ctx := context.Background()
	c, s, mr := newTestSession(t)

	if !mr.Exists(registryKey) {
		t.Fatal("Connect did not register the session database")
	}
	if _, err := c.CreateDatabase(ctx, "other"); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	if _, err := c.CreateDatabase(ctx, "other"); !errors.Is(err, types.ErrDatabaseCreation) {
		t.Errorf("expected ErrDatabaseCreation, got %v", err)
	}
	if _, err := c.CreateDatabase(ctx, "other", types.Params{"not_exists": true}); err != nil {
		t.Errorf("CreateDatabase not_exists failed: %v", err)
	}

	res, err := c.Databases(ctx)
	if err != nil {
		t.Fatalf("Databases failed: %v", err)
	}
	if names := res.Data().([]string); len(names) != 2 || names[0] != "app" || names[1] != "other" {
		t.Errorf("Databases = %v", names)
	}

	mr.Set("other:k1", `"v"`)
	mr.Set("other:k2", `"v"`)
	if _, err := s.Insert(ctx, "k1", "mine"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	show, err := c.ShowDatabase(ctx, "other")
	if err != nil {
		t.Fatalf("ShowDatabase failed: %v", err)
	}
	if show.Data().(map[string]any)["keys"] != 2 {
		t.Errorf("ShowDatabase = %v", show.Data())
	}

	if _, err := c.DeleteDatabase(ctx, "app"); !errors.Is(err, types.ErrDatabaseDeletion) {
		t.Errorf("expected ErrDatabaseDeletion for database in use, got %v", err)
	}
	if _, err := c.DeleteDatabase(ctx, "other"); err != nil {
		t.Fatalf("DeleteDatabase failed: %v", err)
	}
	if mr.Exists("other:k1") || !mr.Exists("app:k1") {
		t.Error("DeleteDatabase removed the wrong keys")
	}
	if ok, _ := c.HasDatabase(ctx, "other"); ok {
		t.Error("database still registered")
	}
	if _, err := c.DeleteDatabase(ctx, "other"); !errors.Is(err, types.ErrDatabaseDeletion) {
		t.Errorf("expected ErrDatabaseDeletion, got %v", err)
	}
	if _, err := c.DeleteDatabase(ctx, "other", types.Params{"if_exists": true}); err != nil {
		t.Errorf("DeleteDatabase if_exists failed: %v", err)
	}
}

func TestSession_CRUD(t *testing.T) {
	ctx := context.Background()
	_, s, mr := newTestSession(t)

	if _, err := s.Insert(ctx, "user", map[string]any{"name": "ada", "age": 36}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if got, _ := mr.Get("app:user"); got != `{"age":36,"name":"ada"}` {
		t.Errorf("stored %q", got)
	}
	if _, err := s.Insert(ctx, "user", 1); !errors.Is(err, types.ErrSessionInserting) {
		t.Errorf("expected ErrSessionInserting, got %v", err)
	}

	got, err := s.Get(ctx, "user")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	v := got.Data()["user"].(map[string]any)
	if v["name"] != "ada" || v["age"] != float64(36) {
		t.Errorf("Get = %v", got.Data())
	}
	if _, err := s.Get(ctx, "nobody"); !errors.Is(err, types.ErrSessionFinding) {
		t.Errorf("expected ErrSessionFinding, got %v", err)
	}

	if _, err := s.Update(ctx, "user", "replaced"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ = s.Get(ctx, "user")
	if got.Data()["user"] != "replaced" {
		t.Errorf("after Update = %v", got.Data())
	}
	if _, err := s.Update(ctx, "nobody", 1); !errors.Is(err, types.ErrSessionUpdating) {
		t.Errorf("expected ErrSessionUpdating, got %v", err)
	}

	if _, err := s.Delete(ctx, "user"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Delete(ctx, "user"); !errors.Is(err, types.ErrSessionDeleting) {
		t.Errorf("expected ErrSessionDeleting, got %v", err)
	}
	if s.ItemCount() != 1 {
		t.Errorf("ItemCount = %d", s.ItemCount())
	}
}

func TestSession_ManyAndTTL(t *testing.T) {
	ctx := context.Background()
	_, s, mr := newTestSession(t)

	if _, err := s.InsertMany(ctx, kvdb.Record{"a": 1, "b": 2}, types.Params{"ttl": time.Minute}); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}
	if ttl := mr.TTL("app:a"); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}
	if _, err := s.InsertMany(ctx, kvdb.Record{"c": 3, "a": 9}); !errors.Is(err, types.ErrSessionInserting) {
		t.Fatalf("expected ErrSessionInserting, got %v", err)
	}
	if mr.Exists("app:c") {
		t.Error("InsertMany wrote c despite conflict")
	}

	if _, err := s.UpdateMany(ctx, kvdb.Record{"a": 10, "b": 20}); err != nil {
		t.Fatalf("UpdateMany failed: %v", err)
	}
	if ttl := mr.TTL("app:a"); ttl != time.Minute {
		t.Errorf("TTL after update = %v, want kept", ttl)
	}
	if _, err := s.UpdateMany(ctx, kvdb.Record{"a": 11, "zz": 1}); !errors.Is(err, types.ErrSessionUpdating) {
		t.Fatalf("expected ErrSessionUpdating, got %v", err)
	}
	if got, _ := mr.Get("app:a"); got != "10" {
		t.Errorf("UpdateMany partially applied: a = %q", got)
	}

	if _, err := s.InsertItem(ctx, kvdb.NewExpiredItem("session", "tok", time.Hour)); err != nil {
		t.Fatalf("InsertItem failed: %v", err)
	}
	if ttl := mr.TTL("app:session"); ttl != time.Hour {
		t.Errorf("ExpiredItem TTL = %v", ttl)
	}
}

func TestSession_FindAndRangeLookups(t *testing.T) {
	ctx := context.Background()
	_, s, mr := newTestSession(t)
	if _, err := s.InsertMany(ctx, kvdb.Record{"user:1": "a", "user:3": "c", "user:5": "e", "order:1": "x"}); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}
	mr.Set("other:user:9", `"foreign"`)

	sel := NewSelector(s, "user:*")
	found, err := s.Find(ctx, sel)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if rec := found.Data(); len(rec) != 3 || rec["user:3"] != "c" {
		t.Errorf("Find = %v", rec)
	}

	sel.Limit = 2
	found, _ = s.Find(ctx, sel)
	if rec := found.Data(); len(rec) != 2 || rec["user:5"] != nil {
		t.Errorf("Find with limit = %v", rec)
	}

	base := &kvdb.BaseSelector{}
	base.Selector = "1"
	base.Partition = "order"
	found, err = s.Find(ctx, base)
	if err != nil || found.Data()["order:1"] != "x" {
		t.Errorf("Find with partition = %v, %v", found, err)
	}

	sel.Limit = 0
	lookups := []struct {
		name string
		fn   func(context.Context, string) (*types.Response[kvdb.Record], error)
		key  string
		want string
	}{
		{"ge hit", sel.FirstGreaterOrEqual, "user:3", "user:3"},
		{"ge gap", sel.FirstGreaterOrEqual, "user:4", "user:5"},
		{"gt", sel.FirstGreaterThan, "user:3", "user:5"},
		{"le gap", sel.LastLessOrEqual, "user:4", "user:3"},
		{"lt", sel.LastLessThan, "user:3", "user:1"},
		{"gt none", sel.FirstGreaterThan, "user:5", ""},
	}
	for _, tt := range lookups {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.fn(ctx, tt.key)
			if err != nil {
				t.Fatalf("lookup failed: %v", err)
			}
			rec := res.Data()
			if tt.want == "" {
				if len(rec) != 0 {
					t.Errorf("expected no match, got %v", rec)
				}
				return
			}
			if _, ok := rec[tt.want]; !ok || len(rec) != 1 {
				t.Errorf("lookup = %v, want %s", rec, tt.want)
			}
		})
	}
}

func TestSession_Copy(t *testing.T) {
	ctx := context.Background()
	_, s, mr := newTestSession(t)
	if _, err := s.Insert(ctx, "src", "v", types.Params{"ttl": "30s"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := s.Insert(ctx, "taken", "old"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if _, err := s.Copy(ctx, "src", "dst"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if got, _ := mr.Get("app:dst"); got != `"v"` {
		t.Errorf("dst = %q", got)
	}
	if ttl := mr.TTL("app:dst"); ttl <= 0 || ttl > 30*time.Second {
		t.Errorf("dst TTL = %v", ttl)
	}
	if _, err := s.Copy(ctx, "src", "taken"); !errors.Is(err, types.ErrSession) {
		t.Errorf("expected ErrSession copying onto existing key, got %v", err)
	}
	if _, err := s.Copy(ctx, "src", "taken", types.Params{"replace": true}); err != nil {
		t.Errorf("Copy with replace failed: %v", err)
	}
	if _, err := s.Copy(ctx, "missing", "x"); !errors.Is(err, types.ErrSession) {
		t.Errorf("expected ErrSession for missing source, got %v", err)
	}
}

func TestSession_Indexes(t *testing.T) {
	ctx := context.Background()
	_, s, _ := newTestSession(t)

	if _, err := s.AddIndex(ctx, kvdb.Index{Name: "by_user", Key: "user:*"}); err != nil {
		t.Fatalf("AddIndex failed: %v", err)
	}
	if _, err := s.AddIndex(ctx, kvdb.Index{Name: "by_user"}); !errors.Is(err, types.ErrSession) {
		t.Errorf("expected ErrSession for duplicate index, got %v", err)
	}
	res, err := s.Indexes(ctx)
	if err != nil {
		t.Fatalf("Indexes failed: %v", err)
	}
	if names := res.Data().([]string); len(names) != 1 || names[0] != "by_user" {
		t.Errorf("Indexes = %v", names)
	}
	if _, err := s.DeleteIndex(ctx, "by_user"); err != nil {
		t.Fatalf("DeleteIndex failed: %v", err)
	}
	if _, err := s.DeleteIndex(ctx, "by_user"); !errors.Is(err, types.ErrSessionDeleting) {
		t.Errorf("expected ErrSessionDeleting, got %v", err)
	}
}

func TestBatch_Execute(t *testing.T) {
	ctx := context.Background()
	_, s, mr := newTestSession(t)

	b := NewBatch(s,
		Command{"SET", s.Key("a"), "1"},
		Command{"INCR", s.Key("a")},
	)
	res, err := s.Call(ctx, b)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	replies := res.Data().([]any)
	if len(replies) != 2 || replies[1] != int64(2) {
		t.Errorf("replies = %v", replies)
	}
	if got, _ := mr.Get("app:a"); got != "2" {
		t.Errorf("a = %q", got)
	}

	b.Append(Command{})
	if _, err := b.Execute(ctx); !errors.Is(err, types.ErrSession) {
		t.Errorf("expected ErrSession for empty command, got %v", err)
	}
}

func TestACLArgs(t *testing.T) {
	got := aclArgs("setuser", "bob", "~app:*", "+@read")
	want := []any{"ACL", "SETUSER", "bob", "~app:*", "+@read"}
	if len(got) != len(want) {
		t.Fatalf("aclArgs = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("aclArgs[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if got := aclArgs("deluser", "bob"); len(got) != 3 || got[1] != "DELUSER" {
		t.Errorf("deluser args = %v", got)
	}
}

func TestSession_ClosedConnection(t *testing.T) {
	ctx := context.Background()
	c, s, _ := newTestSession(t)
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(ctx); !errors.Is(err, types.ErrSessionClosing) {
		t.Errorf("expected ErrSessionClosing, got %v", err)
	}
	if err := c.Close(ctx); err != nil {
		t.Fatalf("connection Close failed: %v", err)
	}
	if _, err := c.Databases(ctx); !errors.Is(err, types.ErrConnect) {
		t.Errorf("expected ErrConnect, got %v", err)
	}
}

func TestSession_ItemCountMatchesData(t *testing.T) {
	ctx := context.Background()
	_, s, _ := newTestSession(t)

	ops := []struct {
		name string
		fn   func() (*types.Result, error)
		want int
	}{
		{"insert", func() (*types.Result, error) { return s.Insert(ctx, "longkey", 1) }, 1},
		{"insert many", func() (*types.Result, error) { return s.InsertMany(ctx, kvdb.Record{"a": 1, "b": 2}) }, 2},
		{"insert many empty", func() (*types.Result, error) { return s.InsertMany(ctx, kvdb.Record{}) }, 0},
		{"update", func() (*types.Result, error) { return s.Update(ctx, "longkey", 2) }, 1},
		{"update many", func() (*types.Result, error) { return s.UpdateMany(ctx, kvdb.Record{"a": 3, "b": 4}) }, 2},
		{"copy", func() (*types.Result, error) { return s.Copy(ctx, "a", "c") }, 1},
		{"delete", func() (*types.Result, error) { return s.Delete(ctx, "longkey") }, 1},
	}
	for _, op := range ops {
		res, err := op.fn()
		if err != nil {
			t.Fatalf("%s failed: %v", op.name, err)
		}
		if res.Len() != op.want || s.ItemCount() != res.Len() {
			t.Errorf("%s: ItemCount = %d, Len = %d, want %d (data %v)", op.name, s.ItemCount(), res.Len(), op.want, res.Data())
		}
	}

	found, err := s.Find(ctx, NewSelector(s, "*"))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if s.ItemCount() != found.Len() || found.Len() != 3 {
		t.Errorf("Find: ItemCount = %d, Len = %d", s.ItemCount(), found.Len())
	}
}

func TestConnection_DatabaseNames(t *testing.T) {
	ctx := context.Background()
	c, _, mr := newTestSession(t)

	for _, name := range []string{"tenant:eu", "t*", "t?", "a[b]", `back\slash`, ""} {
		if _, err := c.CreateDatabase(ctx, name); !errors.Is(err, types.ErrDatabaseCreation) {
			t.Errorf("CreateDatabase(%q): expected ErrDatabaseCreation, got %v", name, err)
		}
	}

	if _, err := c.CreateDatabase(ctx, "tenant"); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	if _, err := c.CreateDatabase(ctx, "tenant2"); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	mr.Set("tenant:order1", `"a"`)
	mr.Set("tenant2:order1", `"b"`)
	if _, err := c.DeleteDatabase(ctx, "tenant"); err != nil {
		t.Fatalf("DeleteDatabase failed: %v", err)
	}
	if mr.Exists("tenant:order1") || !mr.Exists("tenant2:order1") {
		t.Error("DeleteDatabase touched another database's keys")
	}

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	bad := NewConnection(types.Config{Database: "tenant:eu"}, WithClient(client))
	if _, err := bad.Connect(ctx); !errors.Is(err, types.ErrConnect) {
		t.Errorf("expected ErrConnect for a reserved database name, got %v", err)
	}
}

func TestConnection_SharedClientStaysOpen(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c := NewConnection(types.Config{Database: "app"}, WithClient(client))
	if _, err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		t.Errorf("Close closed the caller's client: %v", err)
	}

	s, err := c.Connect(ctx)
	if err != nil {
		t.Fatalf("reconnect did not reuse the caller's client: %v", err)
	}
	if s.Description()["addr"] != mr.Addr() {
		t.Errorf("reconnected to %v", s.Description()["addr"])
	}

	addr := mr.Addr()
	mr.Close()
	failing := NewConnection(types.Config{}, WithClient(goredis.NewClient(&goredis.Options{Addr: addr, MaxRetries: -1})))
	if _, err := failing.Connect(ctx); !errors.Is(err, types.ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
	if err := failing.shared.Ping(ctx).Err(); errors.Is(err, goredis.ErrClosed) {
		t.Error("failed Connect closed the caller's client")
	}
}
