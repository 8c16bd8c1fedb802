package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/mesh-intelligence/nosqlapi/pkg/graphdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

func connectGraph(t *testing.T) *GraphSession {
	t.Helper()
	c := NewGraphConnection(types.Config{DataDir: t.TempDir(), Database: "graph"})
	s, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { c.Close(context.Background()) })
	return s.(*GraphSession)
}

func person(name string, age int) *graphdb.Node {
	return graphdb.NewNode("p", graphdb.Property{"name": name, "age": age}, "Person")
}

func TestGraphSession_InsertGet(t *testing.T) {
	ctx := context.Background()
	s := connectGraph(t)

	n := person("M", 30)
	res, err := s.Insert(ctx, n)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if ids := res.Data().([]string); len(ids) != 1 || ids[0] == "" || ids[0] != n.ID {
		t.Errorf("Insert returned %v, node ID %q", ids, n.ID)
	}
	if s.ItemCount() != res.Len() {
		t.Errorf("ItemCount = %d, want %d", s.ItemCount(), res.Len())
	}
	res, err = s.InsertMany(ctx, []*graphdb.Node{person("N", 40), graphdb.NewNode("c", nil, "City")})
	if err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}
	if s.ItemCount() != 2 || s.ItemCount() != res.Len() {
		t.Errorf("InsertMany: ItemCount = %d, Len = %d", s.ItemCount(), res.Len())
	}
	if _, err := s.Insert(ctx, &graphdb.Node{ID: n.ID}); !errors.Is(err, types.ErrSessionInserting) {
		t.Errorf("expected ErrSessionInserting on duplicate ID, got %v", err)
	}

	got, err := s.Get(ctx, graphdb.NewNode("p", graphdb.Property{"name": "M"}, "Person"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	nodes := got.Data()
	if len(nodes) != 1 || nodes[0].ID != n.ID || !nodes[0].HasLabel("Person") {
		t.Fatalf("Get = %v", nodes)
	}
	if nodes[0].Properties["age"] != float64(30) {
		t.Errorf("age = %v", nodes[0].Properties["age"])
	}

	got, _ = s.Get(ctx, graphdb.NewNode("p", nil, "Person"))
	if len(got.Data()) != 2 {
		t.Errorf("Person nodes = %d, want 2", len(got.Data()))
	}
	got, _ = s.Get(ctx, &graphdb.Node{ID: n.ID})
	if len(got.Data()) != 1 {
		t.Errorf("Get by ID = %v", got.Data())
	}
}

func TestGraphSession_Update(t *testing.T) {
	ctx := context.Background()
	s := connectGraph(t)
	if _, err := s.InsertMany(ctx, []*graphdb.Node{person("M", 30), person("N", 40)}); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	res, err := s.Update(ctx, graphdb.NewNode("p", nil, "Person"), graphdb.Property{"active": true})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if ids := res.Data().([]string); len(ids) != 2 {
		t.Errorf("updated %v, want 2 nodes", ids)
	}
	if s.ItemCount() != res.Len() {
		t.Errorf("ItemCount = %d, want %d", s.ItemCount(), res.Len())
	}
	got, _ := s.Get(ctx, graphdb.NewNode("p", graphdb.Property{"active": true, "name": "N"}, "Person"))
	if len(got.Data()) != 1 {
		t.Errorf("Get after update = %v", got.Data())
	}

	_, err = s.UpdateMany(ctx, []graphdb.Update{
		{Match: graphdb.NewNode("p", graphdb.Property{"name": "M"}, "Person"), Set: graphdb.Property{"age": 31}},
		{Match: graphdb.NewNode("p", graphdb.Property{"name": "Z"}, "Person"), Set: graphdb.Property{"age": 1}},
	})
	if !errors.Is(err, types.ErrSessionUpdating) {
		t.Fatalf("expected ErrSessionUpdating, got %v", err)
	}
	got, _ = s.Get(ctx, graphdb.NewNode("p", graphdb.Property{"age": 30}, "Person"))
	if len(got.Data()) != 1 {
		t.Errorf("UpdateMany was not rolled back: %v", got.Data())
	}
}

func TestGraphSession_LinkDeleteDetach(t *testing.T) {
	ctx := context.Background()
	s := connectGraph(t)
	m, n := person("M", 30), person("N", 40)
	if _, err := s.InsertMany(ctx, []*graphdb.Node{m, n}); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	knows := graphdb.NewRelationship("r", graphdb.Property{"since": 2020}, "KNOWS")
	res, err := s.Link(ctx, &graphdb.Node{ID: m.ID}, knows, &graphdb.Node{ID: n.ID})
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if ids := res.Data().([]string); len(ids) != 1 {
		t.Errorf("Link created %v", ids)
	}
	if _, err := s.Link(ctx, &graphdb.Node{ID: m.ID}, graphdb.NewRelationship("r", nil), &graphdb.Node{ID: n.ID}); !errors.Is(err, types.ErrSessionInserting) {
		t.Errorf("expected ErrSessionInserting for untyped relationship, got %v", err)
	}
	if _, err := s.Link(ctx, &graphdb.Node{ID: m.ID}, knows, &graphdb.Node{ID: "missing"}); !errors.Is(err, types.ErrSessionInserting) {
		t.Errorf("expected ErrSessionInserting for missing endpoint, got %v", err)
	}

	edges, err := s.Relationships(ctx, m.ID)
	if err != nil {
		t.Fatalf("Relationships failed: %v", err)
	}
	e := edges.Data()
	if len(e) != 1 || e[0].From != m.ID || e[0].To != n.ID || e[0].Relationship.Type() != "KNOWS" {
		t.Fatalf("Relationships = %+v", e)
	}

	if _, err := s.Delete(ctx, &graphdb.Node{ID: m.ID}); !errors.Is(err, types.ErrSessionDeleting) {
		t.Fatalf("expected ErrSessionDeleting for linked node, got %v", err)
	}
	if _, err := s.Detach(ctx, &graphdb.Node{ID: m.ID}); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	res, err = s.Delete(ctx, &graphdb.Node{ID: n.ID})
	if err != nil {
		t.Fatalf("Delete failed after detach: %v", err)
	}
	if ids := res.Data().([]string); len(ids) != 1 || ids[0] != n.ID || s.ItemCount() != res.Len() {
		t.Errorf("Delete returned %v with ItemCount %d", ids, s.ItemCount())
	}
	if _, err := s.Delete(ctx, &graphdb.Node{ID: n.ID}); !errors.Is(err, types.ErrSessionDeleting) {
		t.Errorf("expected ErrSessionDeleting for missing node, got %v", err)
	}
}

func TestGraphSession_Find(t *testing.T) {
	ctx := context.Background()
	s := connectGraph(t)
	if _, err := s.InsertMany(ctx, []*graphdb.Node{person("M", 30), person("N", 40), person("O", 20)}); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	sel := &graphdb.BaseSelector{}
	sel.Selector = "Person"
	sel.Order = "age DESC"
	sel.Limit = 2
	sel.Fields = []string{"name"}
	found, err := s.Find(ctx, sel)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	nodes := found.Data()
	if len(nodes) != 2 || nodes[0].Properties["name"] != "N" || nodes[1].Properties["name"] != "M" {
		t.Fatalf("Find = %v", nodes)
	}
	if _, ok := nodes[0].Properties["age"]; ok {
		t.Error("projection kept age")
	}

	sel = &graphdb.BaseSelector{Properties: graphdb.Property{"name": "O"}}
	sel.Selector = "Person"
	found, err = s.Find(ctx, sel)
	if err != nil || len(found.Data()) != 1 {
		t.Errorf("Find by property = %v, %v", found, err)
	}

	sel.Condition = "n.age > 1"
	if _, err := s.Find(ctx, sel); !errors.Is(err, types.ErrSessionFinding) {
		t.Errorf("expected ErrSessionFinding for condition, got %v", err)
	}
}

func TestGraphSession_AddIndex(t *testing.T) {
	ctx := context.Background()
	s := connectGraph(t)
	if _, err := s.AddIndex(ctx, graphdb.Index{Name: "person_name", Node: "Person", Properties: []string{"name"}}); err != nil {
		t.Fatalf("AddIndex failed: %v", err)
	}
	if _, err := s.AddIndex(ctx, graphdb.Index{Name: "bad"}); !errors.Is(err, types.ErrSession) {
		t.Errorf("expected ErrSession, got %v", err)
	}
	if _, err := s.DeleteIndex(ctx, "person_name"); err != nil {
		t.Errorf("DeleteIndex failed: %v", err)
	}
}
