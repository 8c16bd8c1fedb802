package surreal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/mesh-intelligence/nosqlapi/pkg/docdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/kvdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

type call struct {
	q    string
	vars map[string]any
}

// fakeClient records queries and answers them with reply.
type fakeClient struct {
	calls  []call
	uses   []string
	closed bool
	reply  func(q string, vars map[string]any) ([]any, error)
}

func (f *fakeClient) query(ctx context.Context, q string, vars map[string]any) ([]any, error) {
	f.calls = append(f.calls, call{q, vars})
	if f.reply == nil {
		return []any{[]any{}}, nil
	}
	return f.reply(q, vars)
}

func (f *fakeClient) use(ctx context.Context, ns, db string) error {
	f.uses = append(f.uses, ns+"/"+db)
	return nil
}

func (f *fakeClient) ping(ctx context.Context) error { return nil }

func (f *fakeClient) close(ctx context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeClient) last() call { return f.calls[len(f.calls)-1] }

func connect(t *testing.T, f *fakeClient) (*Connection, *Session) {
	t.Helper()
	c := NewConnection(types.Config{Database: "app", Options: map[string]any{"namespace": "ns"}}, withClient(f))
	s, err := c.Connect(context.Background())
	require.NoError(t, err)
	return c, s.(*Session)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "ws://localhost:8000", Endpoint(types.Config{}))
	assert.Equal(t, "wss://db.example:9000", Endpoint(types.Config{Host: "db.example", Port: 9000, TLS: true}))
}

func TestConnect_UsesNamespaceAndDatabase(t *testing.T) {
	f := &fakeClient{}
	c, s := connect(t, f)
	assert.True(t, c.Connected())
	assert.Equal(t, []string{"ns/app"}, f.uses)
	assert.Equal(t, "app", s.Database())
	assert.Equal(t, "surreal", s.Description()["driver"])

	require.NoError(t, c.Close(context.Background()))
	assert.True(t, f.closed)
	require.NoError(t, c.Close(context.Background()))

	_, err := s.Get(context.Background(), "people", "p1")
	assert.ErrorIs(t, err, types.ErrConnect)
}

func TestSelectQuery(t *testing.T) {
	sel := &docdb.BaseSelector{Filter: map[string]any{"name": "ada", "_id": "p1"}}
	sel.Selector = "people"
	sel.Fields = []string{"name", "address.city"}
	sel.Condition = "age > 18"
	sel.Order = "age desc"
	sel.Limit = 10

	q, vars, err := selectQuery(sel)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, `name`, `address`.`city` FROM type::table($tb) WHERE record::id(id) = $f0 AND `name` = $f1 AND (age > 18) ORDER BY `age` DESC LIMIT 10",
		q)
	assert.Equal(t, map[string]any{"tb": "people", "f0": "p1", "f1": "ada"}, vars)

	sel.Order = "age sideways"
	_, _, err = selectQuery(sel)
	assert.ErrorIs(t, err, types.ErrSelectorAttribute)

	_, _, err = selectQuery(&docdb.BaseSelector{})
	assert.ErrorIs(t, err, types.ErrSelectorAttribute)
}

func TestWriteMany(t *testing.T) {
	one := docdb.NewDocument(map[string]any{"name": "ada"}, "p1")
	q, vars := writeMany("CREATE", "people", []*docdb.Document{one})
	assert.Equal(t, "CREATE type::thing($tb, $id0) CONTENT $body0", q)
	assert.Equal(t, map[string]any{"name": "ada"}, vars["body0"])

	two := docdb.NewDocument(map[string]any{"name": "bob"}, "p2")
	q, vars = writeMany("UPDATE", "people", []*docdb.Document{one, two})
	assert.True(t, strings.HasPrefix(q, "BEGIN TRANSACTION;\n"))
	assert.Contains(t, q, "UPDATE type::thing($tb, $id1) CONTENT $body1;\n")
	assert.True(t, strings.HasSuffix(q, "COMMIT TRANSACTION;"))
	assert.Equal(t, "p2", vars["id1"])
}

func TestIdentAndIndexQuery(t *testing.T) {
	assert.Equal(t, "`we\\`ird`", ident("we`ird"))
	idx := docdb.Index{Name: "by_name", Data: map[string]any{"name": 1, "age": -1}}
	assert.Equal(t, "DEFINE INDEX `by_name` ON TABLE `people` FIELDS `age`, `name` UNIQUE", indexQuery("people", idx, true))
}

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "p1", recordKey(models.RecordID{Table: "people", ID: "p1"}))
	assert.Equal(t, "7", recordKey(&models.RecordID{Table: "people", ID: 7}))
	assert.Equal(t, "p1", recordKey("people:p1"))
	assert.Equal(t, "p 1", recordKey("people:⟨p 1⟩"))
	assert.Equal(t, "bare", recordKey("bare"))
}

func TestSession_GetAndFind(t *testing.T) {
	f := &fakeClient{reply: func(q string, vars map[string]any) ([]any, error) {
		if vars["id"] == "missing" {
			return []any{[]any{}}, nil
		}
		return []any{[]any{
			map[string]any{"id": models.RecordID{Table: "people", ID: "p1"}, "name": "ada"},
			map[string]any{"id": models.RecordID{Table: "people", ID: "p2"}, "name": "bob"},
		}}, nil
	}}
	_, s := connect(t, f)
	ctx := context.Background()

	got, err := s.Get(ctx, "people", "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.Data().ID())
	v, _ := got.Data().Get("name")
	assert.Equal(t, "ada", v)
	assert.Equal(t, map[string]any{"tb": "people", "id": "p1"}, f.last().vars)

	_, err = s.Get(ctx, "people", "missing")
	assert.ErrorIs(t, err, types.ErrSessionFinding)

	sel := &docdb.BaseSelector{}
	sel.Selector = "people"
	found, err := s.Find(ctx, sel)
	require.NoError(t, err)
	require.Len(t, found.Data(), 2)
	assert.Equal(t, "p2", found.Data()[1].ID())
	assert.Equal(t, 2, s.ItemCount())

	_, err = s.Find(ctx, &kvdb.BaseSelector{})
	assert.ErrorIs(t, err, types.ErrSessionFinding)
}

func TestSession_Writes(t *testing.T) {
	stored := map[string]bool{"p1": true}
	f := &fakeClient{reply: func(q string, vars map[string]any) ([]any, error) {
		switch {
		case strings.HasPrefix(q, "CREATE"):
			if stored[vars["id0"].(string)] {
				return nil, errors.New("record already exists")
			}
			stored[vars["id0"].(string)] = true
		case strings.HasPrefix(q, "SELECT VALUE"):
			var out []any
			for _, id := range vars["ids"].([]string) {
				if stored[id] {
					out = append(out, id)
				}
			}
			return []any{out}, nil
		case strings.HasPrefix(q, "DELETE"):
			if !stored[vars["id"].(string)] {
				return []any{[]any{}}, nil
			}
			delete(stored, vars["id"].(string))
			return []any{[]any{map[string]any{"id": "people:" + vars["id"].(string)}}}, nil
		}
		return []any{[]any{}}, nil
	}}
	_, s := connect(t, f)
	ctx := context.Background()

	res, err := s.Insert(ctx, "people", docdb.NewDocument(map[string]any{"name": "bob"}, "p2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, res.Data())
	assert.Equal(t, res.Len(), s.ItemCount())
	_, err = s.Insert(ctx, "people", docdb.NewDocument(nil, "p1"))
	assert.ErrorIs(t, err, types.ErrSessionInserting)

	res, err = s.Update(ctx, "people", docdb.NewDocument(map[string]any{"name": "ada"}, "p1"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.last().q, "UPDATE"))
	assert.Equal(t, []string{"p1"}, res.Data())
	assert.Equal(t, res.Len(), s.ItemCount())
	_, err = s.Update(ctx, "people", docdb.NewDocument(nil, "ghost"))
	assert.ErrorIs(t, err, types.ErrSessionUpdating)

	res, err = s.Delete(ctx, "people", "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, res.Data())
	assert.Equal(t, res.Len(), s.ItemCount())
	_, err = s.Delete(ctx, "people", "p1")
	assert.ErrorIs(t, err, types.ErrSessionDeleting)
}

func TestSession_ManyItemCount(t *testing.T) {
	f := &fakeClient{reply: func(q string, vars map[string]any) ([]any, error) {
		if strings.HasPrefix(q, "SELECT VALUE") {
			out := []any{}
			for _, id := range vars["ids"].([]string) {
				out = append(out, id)
			}
			return []any{out}, nil
		}
		return []any{[]any{}}, nil
	}}
	_, s := connect(t, f)
	ctx := context.Background()
	docs := []*docdb.Document{
		docdb.NewDocument(map[string]any{"name": "ada"}, "p1"),
		docdb.NewDocument(map[string]any{"name": "bob"}, "p2"),
	}

	res, err := s.InsertMany(ctx, "people", docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, res.Data())
	assert.Equal(t, 2, s.ItemCount())
	assert.Equal(t, res.Len(), s.ItemCount())

	res, err = s.UpdateMany(ctx, "people", docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, res.Data())
	assert.Equal(t, res.Len(), s.ItemCount())
}

func TestSession_IndexesAndUsers(t *testing.T) {
	f := &fakeClient{reply: func(q string, vars map[string]any) ([]any, error) {
		switch q {
		case "INFO FOR DB":
			return []any{map[string]any{
				"tables": map[string]any{"people": "DEFINE TABLE people"},
				"users":  map[string]any{"root": "DEFINE USER root"},
			}}, nil
		case "INFO FOR TABLE `people`":
			return []any{map[string]any{"indexes": map[string]any{"by_name": "DEFINE INDEX by_name"}}}, nil
		}
		return []any{nil}, nil
	}}
	_, s := connect(t, f)
	ctx := context.Background()

	idx, err := s.Indexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"people.by_name"}, idx.Data())

	_, err = s.DeleteIndex(ctx, "by_name")
	require.NoError(t, err)
	assert.Equal(t, "REMOVE INDEX `by_name` ON TABLE `people`", f.last().q)
	_, err = s.DeleteIndex(ctx, "nope")
	assert.ErrorIs(t, err, types.ErrSessionDeleting)

	compacted, err := s.Compact(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"by_name"}, compacted.Data())
	assert.Equal(t, "REBUILD INDEX `by_name` ON TABLE `people`", f.last().q)

	_, err = s.AddIndex(ctx, "people", docdb.Index{Name: "empty"})
	assert.ErrorIs(t, err, types.ErrSession)

	acl, err := s.ACL(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, acl.Data())

	_, err = s.NewUser(ctx, "bob", "pw", types.Params{"roles": []string{"editor"}})
	require.NoError(t, err)
	assert.Equal(t, "DEFINE USER `bob` ON DATABASE PASSWORD $password ROLES EDITOR", f.last().q)
	assert.Equal(t, "pw", f.last().vars["password"])

	_, err = s.Grant(ctx, "app", "bob", "owner")
	assert.ErrorIs(t, err, types.ErrSessionACL)
}

func TestConnection_Databases(t *testing.T) {
	f := &fakeClient{reply: func(q string, vars map[string]any) ([]any, error) {
		switch {
		case q == "INFO FOR NS":
			return []any{map[string]any{"databases": map[string]any{"app": "", "old": ""}}}, nil
		case q == "INFO FOR DB":
			return []any{map[string]any{"tables": map[string]any{"people": ""}}}, nil
		case strings.HasPrefix(q, "SELECT * FROM"):
			return []any{[]any{map[string]any{"id": "people:p1", "name": "ada"}}}, nil
		}
		return []any{nil}, nil
	}}
	c, _ := connect(t, f)
	ctx := context.Background()

	dbs, err := c.Databases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "old"}, dbs.Data())

	ok, err := c.HasDatabase(ctx, "old")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.CreateDatabase(ctx, "new", types.Params{"not_exists": true})
	require.NoError(t, err)
	assert.Equal(t, "DEFINE DATABASE IF NOT EXISTS `new`", f.last().q)

	_, err = c.DeleteDatabase(ctx, "app")
	assert.ErrorIs(t, err, types.ErrDatabaseDeletion)

	show, err := c.ShowDatabase(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, show.Data().(map[string]any)["tables"])
	assert.Equal(t, "ns/app", f.uses[len(f.uses)-1])

	_, err = c.CopyDatabase(ctx, "app", "old")
	assert.ErrorIs(t, err, types.ErrDatabaseCreation)

	_, err = c.CopyDatabase(ctx, "app", "backup")
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO type::table($tb) $rows", f.last().q)
	assert.Len(t, f.last().vars["rows"], 1)
	assert.Equal(t, []string{"ns/app", "ns/old", "ns/app", "ns/app", "ns/app", "ns/backup", "ns/app"}, f.uses)
}

func TestBatch_Execute(t *testing.T) {
	f := &fakeClient{reply: func(q string, vars map[string]any) ([]any, error) {
		return []any{[]any{}, []any{}}, nil
	}}
	_, s := connect(t, f)

	b := NewBatch(s,
		Statement{Query: "CREATE person:a SET n = $a;", Vars: map[string]any{"a": 1}},
		Statement{Query: "CREATE person:b SET n = $b", Vars: map[string]any{"b": 2}},
	)
	res, err := s.Call(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, res.Len(), s.ItemCount())
	assert.Equal(t,
		"BEGIN TRANSACTION;\nCREATE person:a SET n = $a;\nCREATE person:b SET n = $b;\nCOMMIT TRANSACTION;",
		f.last().q)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, f.last().vars)
	assert.Equal(t, 2, s.ItemCount())
}
