package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/lumen/internal/cueschema"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

// createTestCatalog creates a catalog backed by a temp file.
func createTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// createTestSchema builds a small user schema covering every type kind.
func createTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := cueschema.LoadString(`
module: "default"

type: Person: {
	properties: name: { target: "std::str", required: true }
	properties: greeting: { target: "std::str", expr: "'hello'" }
	links: friends: {
		target: "Person"
		multi:  true
		properties: strength: { target: "std::int64" }
	}
}

type: Employee: {
	extending: ["Person"]
	properties: salary: { target: "std::int64", default: "0" }
}

scalar: score: { extending: ["std::int64"] }

tuple: coords: {
	named: true
	elements: [
		{ name: "lat", type: "std::float64" },
		{ name: "lng", type: "std::float64" },
	]
}

view: Adults: { of: "Person", expr: "Person" }
`)
	if err != nil {
		t.Fatalf("building test schema: %v", err)
	}
	return s
}

func resolvePointer(t *testing.T, s *schema.Schema, typeName, ptrName string) *schema.Pointer {
	t.Helper()
	typ, ok := s.TypeByName(typeName)
	if !ok {
		t.Fatalf("type %s not found", typeName)
	}
	_, ptr := s.ResolvePointer(typ.(*schema.ObjectType), ptrName, pathid.Outbound, nil)
	if ptr == nil {
		t.Fatalf("pointer %s.%s not found", typeName, ptrName)
	}
	return ptr
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer c.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	for i := 0; i < 3; i++ {
		c, err := Open(path)
		if err != nil {
			t.Fatalf("Open() attempt %d failed: %v", i+1, err)
		}
		c.Close()
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	c := createTestCatalog(t)

	checks := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
	}
	for name, expected := range checks {
		if err := c.verifyPragma(name, expected); err != nil {
			t.Errorf("pragma check failed: %v", err)
		}
	}
}

func TestLoad_EmptyCatalogSeedsBuiltins(t *testing.T) {
	c := createTestCatalog(t)

	s, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	for _, name := range []string{schema.StrName, schema.Int64Name, schema.BaseObjectName} {
		if _, ok := s.TypeByName(name); !ok {
			t.Errorf("builtin %s missing after load", name)
		}
	}
}

func TestSnapshotLoad_RoundTrip(t *testing.T) {
	c := createTestCatalog(t)
	ctx := context.Background()

	if err := c.Snapshot(ctx, createTestSchema(t)); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	s, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	name := resolvePointer(t, s, "default::Person", "name")
	if name.Target != schema.StrName {
		t.Errorf("name target = %q, want %q", name.Target, schema.StrName)
	}
	if !name.Required {
		t.Error("name should be required")
	}

	friends := resolvePointer(t, s, "default::Person", "friends")
	if friends.Kind != schema.Link {
		t.Error("friends should be a link")
	}
	if friends.Cardinality != schema.Many {
		t.Errorf("friends cardinality = %q, want %q", friends.Cardinality, schema.Many)
	}

	strength := friends.Property("strength")
	if strength == nil {
		t.Fatal("link property strength missing after round trip")
	}
	if strength.Target != schema.Int64Name {
		t.Errorf("strength target = %q, want %q", strength.Target, schema.Int64Name)
	}

	greeting := resolvePointer(t, s, "default::Person", "greeting")
	if greeting.Expr != "'hello'" {
		t.Errorf("greeting expr = %q, want %q", greeting.Expr, "'hello'")
	}

	salary := resolvePointer(t, s, "default::Employee", "salary")
	if salary.Default != "0" {
		t.Errorf("salary default = %q, want %q", salary.Default, "0")
	}
}

func TestSnapshotLoad_InheritanceSurvives(t *testing.T) {
	c := createTestCatalog(t)
	ctx := context.Background()

	if err := c.Snapshot(ctx, createTestSchema(t)); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	s, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// name is declared on Person and must resolve from Employee without
	// being stored twice.
	name := resolvePointer(t, s, "default::Employee", "name")
	if name.Source != "default::Person" {
		t.Errorf("inherited name source = %q, want default::Person", name.Source)
	}

	var count int
	err = c.db.QueryRow(`SELECT COUNT(*) FROM pointers WHERE name = 'name'`).Scan(&count)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("name stored %d times, want 1", count)
	}
}

func TestSnapshotLoad_ViewAndScalarAndTuple(t *testing.T) {
	c := createTestCatalog(t)
	ctx := context.Background()

	if err := c.Snapshot(ctx, createTestSchema(t)); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	s, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	typ, ok := s.TypeByName("default::Adults")
	if !ok {
		t.Fatal("view default::Adults missing")
	}
	view := typ.(*schema.ObjectType)
	if view.ViewOf != "default::Person" {
		t.Errorf("view base = %q, want default::Person", view.ViewOf)
	}
	if view.ViewExpr != "Person" {
		t.Errorf("view expr = %q, want Person", view.ViewExpr)
	}

	typ, ok = s.TypeByName("default::score")
	if !ok {
		t.Fatal("scalar default::score missing")
	}
	score := typ.(*schema.ScalarType)
	if len(score.Bases) != 1 || score.Bases[0] != schema.Int64Name {
		t.Errorf("score bases = %v, want [%s]", score.Bases, schema.Int64Name)
	}

	typ, ok = s.TypeByName("default::coords")
	if !ok {
		t.Fatal("tuple default::coords missing")
	}
	coords := typ.(*schema.TupleType)
	if !coords.Named {
		t.Error("coords should be a named tuple")
	}
	if len(coords.Elements) != 2 || coords.Elements[0].Name != "lat" {
		t.Errorf("coords elements = %v", coords.Elements)
	}
}

func TestSnapshot_ReplacesPreviousContents(t *testing.T) {
	c := createTestCatalog(t)
	ctx := context.Background()

	if err := c.Snapshot(ctx, createTestSchema(t)); err != nil {
		t.Fatalf("first Snapshot() failed: %v", err)
	}

	small, err := cueschema.LoadString(`type: Thing: {}`)
	if err != nil {
		t.Fatalf("building replacement schema: %v", err)
	}
	if err := c.Snapshot(ctx, small); err != nil {
		t.Fatalf("second Snapshot() failed: %v", err)
	}

	s, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if _, ok := s.TypeByName("default::Person"); ok {
		t.Error("default::Person should have been replaced")
	}
	if _, ok := s.TypeByName("default::Thing"); !ok {
		t.Error("default::Thing missing after snapshot")
	}
}

func TestSnapshot_SkipsBuiltins(t *testing.T) {
	c := createTestCatalog(t)
	ctx := context.Background()

	if err := c.Snapshot(ctx, createTestSchema(t)); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM types WHERE name LIKE 'std::%'`).Scan(&count)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("%d std:: types persisted, want 0", count)
	}
}

func TestSnapshotLoad_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	c1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := c1.Snapshot(ctx, createTestSchema(t)); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	c1.Close()

	c2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer c2.Close()

	s, err := c2.Load(ctx)
	if err != nil {
		t.Fatalf("Load() after reopen failed: %v", err)
	}
	if _, ok := s.TypeByName("default::Person"); !ok {
		t.Error("default::Person missing after reopen")
	}
}
