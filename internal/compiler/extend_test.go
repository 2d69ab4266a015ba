package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

func TestExtendPath_ImplicitIndirection(t *testing.T) {
	ctx := testContext(t)
	person := ClassSet(ctx, typeByName(t, ctx, "default::Person"), nil)
	salary := resolveTestPtr(t, ctx, "default::Employee", "salary")

	// A pointer declared on a subtype of the source's static type forces
	// an implicit, optional narrowing before the traversal.
	tip, err := ExtendPath(ctx, person, salary, pathid.Outbound, nil, ExtendOpts{})
	require.NoError(t, err)

	assert.Equal(t, schema.Int64Name, SetType(ctx, tip).SchemaName())
	narrowed := tip.RPtr.Source
	require.NotNil(t, narrowed.RPtr)
	assert.Equal(t, ir.TypeIndirection, narrowed.RPtr.Kind)
	assert.True(t, narrowed.RPtr.Optional)
	assert.Equal(t, "default::Employee", SetType(ctx, narrowed).SchemaName())
	assert.Same(t, person, narrowed.RPtr.Source)
}

func TestExtendPath_NoIndirectionForDeclaredType(t *testing.T) {
	ctx := testContext(t)
	employee := ClassSet(ctx, typeByName(t, ctx, "default::Employee"), nil)
	salary := resolveTestPtr(t, ctx, "default::Employee", "salary")

	tip, err := ExtendPath(ctx, employee, salary, pathid.Outbound, nil, ExtendOpts{})
	require.NoError(t, err)

	assert.Same(t, employee, tip.RPtr.Source)
}

func TestEdgeMany(t *testing.T) {
	ctx := testContext(t)
	friends := resolveTestPtr(t, ctx, "default::Person", "friends")
	name := resolveTestPtr(t, ctx, "default::Person", "name")

	assert.True(t, edgeMany(friends, pathid.Outbound))
	assert.False(t, edgeMany(name, pathid.Outbound))
	assert.True(t, edgeMany(name, pathid.Inbound), "inbound is always plural")
}

func TestTypeIndirectionSet_CardinalityFollowsEdge(t *testing.T) {
	ctx := testContext(t)
	employee := typeByName(t, ctx, "default::Employee")

	single := compilePath(t, ctx, "Person.best_friend")
	narrowedSingle, err := TypeIndirectionSet(ctx, single, employee, false)
	require.NoError(t, err)
	assert.False(t, narrowedSingle.RPtr.Many, "a filter narrows, never multiplies")

	plural := compilePath(t, ctx, "Person.friends")
	narrowedPlural, err := TypeIndirectionSet(ctx, plural, employee, false)
	require.NoError(t, err)
	assert.True(t, narrowedPlural.RPtr.Many)
}

func TestPtrStepSet_RedundantFilterSkipped(t *testing.T) {
	ctx := testContext(t)
	person := objectType(t, ctx, "default::Person")
	root := ClassSet(ctx, person, nil)

	// [IS Person] on a Person endpoint adds nothing.
	tip, err := PtrStepSet(ctx, root, person, "friends", pathid.Outbound,
		person, ast.Pos{}, ExtendOpts{})
	require.NoError(t, err)
	assert.Equal(t, ir.Traversal, tip.RPtr.Kind)

	// [IS Employee] narrows.
	employee := typeByName(t, ctx, "default::Employee")
	tip, err = PtrStepSet(ctx, root, person, "friends", pathid.Outbound,
		employee, ast.Pos{}, ExtendOpts{})
	require.NoError(t, err)
	assert.Equal(t, ir.TypeIndirection, tip.RPtr.Kind)
	assert.False(t, tip.RPtr.Optional, "explicit filters are not optional")
}
