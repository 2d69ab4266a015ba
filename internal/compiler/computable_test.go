package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/parser"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

func TestComputable_ConstantBody(t *testing.T) {
	ctx := testContext(t)

	tip := compilePath(t, ctx, "Person.greeting")

	// The expansion is indistinguishable from an ordinary step from the
	// outside: the outer identity and incoming edge are in place, and the
	// defining body hangs off the Set as a statement.
	assert.Equal(t, schema.StrName, SetType(ctx, tip).SchemaName())
	assert.Equal(t, "default::Person.greeting", tip.PathID.Key())
	require.NotNil(t, tip.RPtr)
	assert.Equal(t, "greeting", tip.RPtr.Ptr.ShortName())
	assert.Same(t, tip, tip.RPtr.Target)

	stmt, ok := tip.Expr.(*ir.SelectStmt)
	require.True(t, ok)
	_, ok = stmt.Result.Expr.(*ir.Constant)
	require.True(t, ok)
}

func TestComputable_SelfReference(t *testing.T) {
	ctx := testContext(t)

	tip := compilePath(t, ctx, "Person.shouted_name")

	assert.Equal(t, schema.StrName, SetType(ctx, tip).SchemaName())
	assert.Equal(t, "default::Person.shouted_name", tip.PathID.Key())

	// __source__ inside the body binds to this call site's source.
	stmt, ok := tip.Expr.(*ir.SelectStmt)
	require.True(t, ok)
	require.NotNil(t, stmt.Result.RPtr)
	assert.Same(t, tip.RPtr.Source, stmt.Result.RPtr.Source)
}

func TestComputable_MidPathSplicesSource(t *testing.T) {
	ctx := testContext(t)

	tip := compilePath(t, ctx, "Person.bff.name")

	assert.Equal(t, schema.StrName, SetType(ctx, tip).SchemaName())

	// The step after the computed link hangs off the expanded Set, not
	// the placeholder built during initial traversal.
	bff := tip.RPtr.Source
	assert.Equal(t, "bff", bff.RPtr.Ptr.ShortName())
	_, ok := bff.Expr.(*ir.SelectStmt)
	assert.True(t, ok, "the spliced source carries the expanded body")
}

func TestComputable_DistinctCallSites(t *testing.T) {
	ctx := testContext(t)
	ptr := resolveTestPtr(t, ctx, "default::Person", "shouted_name")

	parsed, err := parser.New().ParseExpr("Person.name")
	require.NoError(t, err)
	ctx.SourceMap[ptr] = SourceMapEntry{Expr: ast.EnsureStatement(parsed), Ctx: ctx}

	first := compilePath(t, ctx, "Person.shouted_name")
	second := compilePath(t, ctx, "Person.shouted_name")

	// Same outer identity and type either way.
	assert.Equal(t, first.PathID.Key(), second.PathID.Key())
	assert.Equal(t, SetType(ctx, first), SetType(ctx, second))

	// But each expansion compiled its body in a freshly minted namespace,
	// so the inner identities can never collide.
	assert.Equal(t, 2, ctx.Env.AliasCount("ns"))
	firstInner := first.Expr.(*ir.SelectStmt).Result.PathID
	secondInner := second.Expr.(*ir.SelectStmt).Result.PathID
	assert.NotEqual(t, firstInner.Key(), secondInner.Key())
	assert.Equal(t, firstInner.String(), secondInner.String(),
		"only the namespaces differ")
}

func TestComputable_RecordedSourceRemapsToCallSite(t *testing.T) {
	ctx := testContext(t)
	ptr := resolveTestPtr(t, ctx, "default::Person", "shouted_name")

	parsed, err := parser.New().ParseExpr("Person.name")
	require.NoError(t, err)
	ctx.SourceMap[ptr] = SourceMapEntry{Expr: ast.EnsureStatement(parsed), Ctx: ctx}

	tip := compilePath(t, ctx, "Person.shouted_name")

	// "Person" inside the body is the call site's source, not a second
	// independent Person set: the inner root carries the outer identity.
	inner := tip.Expr.(*ir.SelectStmt).Result
	require.NotNil(t, inner.RPtr)
	assert.Equal(t, "default::Person", inner.RPtr.Source.PathID.String())
}

func TestComputable_ViewSourcePeeled(t *testing.T) {
	ctx := testContext(t)

	tip := compilePath(t, ctx, "FriendlyPerson.shouted_name")

	assert.Equal(t, schema.StrName, SetType(ctx, tip).SchemaName())

	// The path source keeps the view type, but the self anchor the body
	// compiled against was peeled to the underlying base type.
	assert.Equal(t, "default::FriendlyPerson",
		SetType(ctx, tip.RPtr.Source).SchemaName())
	inner := tip.Expr.(*ir.SelectStmt).Result
	require.NotNil(t, inner.RPtr)
	assert.Equal(t, "default::Person",
		SetType(ctx, inner.RPtr.Source).SchemaName())
}

func TestComputable_PendingCardinalityViolation(t *testing.T) {
	ctx := testContext(t)
	ptr := resolveTestPtr(t, ctx, "default::Person", "bff")
	ctx.PendingCardinality[ptr] = PendingCardinality{Specified: schema.One}

	_, err := CompileExpr(ctx, parsePath(t, "Person.bff"))

	require.Error(t, err)
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, ErrCodeCardinalityViolation, qe.Code)
	assert.Contains(t, err.Error(),
		"possibly more than one element returned by an expression declared as 'single'")
}

func TestComputable_PendingCardinalitySatisfied(t *testing.T) {
	ctx := testContext(t)
	ptr := resolveTestPtr(t, ctx, "default::Person", "greeting")
	ctx.PendingCardinality[ptr] = PendingCardinality{Specified: schema.One}

	tip := compilePath(t, ctx, "Person.greeting")

	assert.Equal(t, schema.StrName, SetType(ctx, tip).SchemaName())
}

func TestComputable_ForcedDefault(t *testing.T) {
	ctx := testContext(t)

	b := schema.NewBuilder()
	b.AddObject("default::Ticket")
	b.AddProperty("default::Ticket", "state", schema.StrName,
		schema.PointerSpec{Default: "'open'"})
	s, err := b.Build()
	require.NoError(t, err)
	ctx.Env.Schema = s

	ticket := objectType(t, ctx, "default::Ticket")
	source := ClassSet(ctx, ticket, nil)
	ptr := resolveTestPtr(t, ctx, "default::Ticket", "state")

	assert.False(t, isComputablePtr(ctx, ptr, false),
		"a stored default does not make the pointer computed")
	require.True(t, isComputablePtr(ctx, ptr, true))

	tip, err := ExtendPath(ctx, source, ptr, pathid.Outbound, nil, ExtendOpts{ForceComputable: true})
	require.NoError(t, err)
	assert.Equal(t, schema.StrName, SetType(ctx, tip).SchemaName())
	stmt, ok := tip.Expr.(*ir.SelectStmt)
	require.True(t, ok)
	_, ok = stmt.Result.Expr.(*ir.Constant)
	assert.True(t, ok, "the default body is compiled in place")
}

func TestComputable_NotComputableIsInternal(t *testing.T) {
	ctx := testContext(t)
	ptr := resolveTestPtr(t, ctx, "default::Person", "name")

	_, _, _, _, err := computableExpr(ctx, ptr)

	require.Error(t, err)
	assert.True(t, IsInternalError(err))
	assert.Contains(t, err.Error(), `"name" is not a computable pointer`)
}

func TestComputable_RecordedNilMeansStored(t *testing.T) {
	ctx := testContext(t)
	ptr := resolveTestPtr(t, ctx, "default::Person", "greeting")

	// A recorded nil expression marks the pointer as known to be stored,
	// overriding its schema-level computed status.
	ctx.SourceMap[ptr] = SourceMapEntry{}

	assert.False(t, isComputablePtr(ctx, ptr, false))

	tip := compilePath(t, ctx, "Person.greeting")
	assert.Nil(t, tip.Expr, "no body is compiled for a stored pointer")
}
