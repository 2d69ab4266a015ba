package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/scope"
)

func TestRegisterSetInScope_FreshIdentity(t *testing.T) {
	ctx := testContext(t)
	person := ClassSet(ctx, typeByName(t, ctx, "default::Person"), nil)

	got, err := RegisterSetInScope(ctx, person)

	require.NoError(t, err)
	assert.Same(t, person, got)
	assert.GreaterOrEqual(t, got.ScopeID, 0)

	node := ctx.ScopeTree.FindChild(person.PathID)
	require.NotNil(t, node)
	assert.Same(t, node, SetScope(ctx, got))
}

func TestRegisterSetInScope_DuplicateWraps(t *testing.T) {
	ctx := testContext(t)
	stype := typeByName(t, ctx, "default::Person")

	first, err := RegisterSetInScope(ctx, ClassSet(ctx, stype, nil))
	require.NoError(t, err)

	second, err := RegisterSetInScope(ctx, ClassSet(ctx, stype, nil))
	require.NoError(t, err)

	// The duplicate is wrapped in an implicit statement under a derived
	// alias instead of registering the same label twice.
	assert.NotEqual(t, first.PathID.Key(), second.PathID.Key())
	assert.Equal(t, "__derived__", second.PathID.Root()[:len("__derived__")])
	assert.Same(t, SetScope(ctx, first), SetScope(ctx, second))

	count := 0
	for _, child := range ctx.ScopeTree.Children() {
		if child.PathID != nil && child.PathID.Key() == first.PathID.Key() {
			count++
		}
	}
	assert.Equal(t, 1, count, "one identity, one label")
}

func TestFuseScopeBranch_AnonymousParent(t *testing.T) {
	parent := scope.NewFence()
	id := pathid.FromType("default::Person")
	branch := scope.NewLabeled(id)

	FuseScopeBranch(parent, branch)

	require.Len(t, parent.Children(), 1)
	assert.Same(t, branch, parent.Children()[0])
}

func TestFuseScopeBranch_DistinctIdentities(t *testing.T) {
	parent := scope.NewLabeled(pathid.FromType("default::Person"))
	branch := scope.NewLabeled(pathid.FromType("default::Employee"))

	FuseScopeBranch(parent, branch)

	require.Len(t, parent.Children(), 1)
	assert.Same(t, branch, parent.Children()[0])
}

func TestFuseScopeBranch_EqualIdentityReRoots(t *testing.T) {
	id := pathid.FromType("default::Person")
	parent := scope.NewLabeled(id)

	branch := scope.NewLabeled(id)
	childA := scope.NewLabeled(id.Extend("name", pathid.Outbound, "std::str"))
	childB := scope.NewLabeled(id.Extend("friends", pathid.Outbound, "default::Person"))
	branch.AttachChild(childA)
	branch.AttachChild(childB)

	FuseScopeBranch(parent, branch)

	// The clashing label is dropped; its children survive under a fresh
	// anonymous node so the identity appears only once in the tree.
	require.Len(t, parent.Children(), 1)
	adopted := parent.Children()[0]
	assert.Nil(t, adopted.PathID)
	require.Len(t, adopted.Children(), 2)
	assert.Contains(t, adopted.Children(), childA)
	assert.Contains(t, adopted.Children(), childB)
	assert.Nil(t, parent.FindDescendant(id), "fused identity never duplicates its parent")
}

func TestFuseScopeBranch_CollapsesAnonymousWrapper(t *testing.T) {
	id := pathid.FromType("default::Person")
	parent := scope.NewLabeled(id)

	// An isolated sub-compile leaves a single anonymous fence wrapping
	// the real branch; the tie-break must see through it.
	wrapper := scope.NewFence()
	inner := scope.NewLabeled(id)
	grandchild := scope.NewLabeled(id.Extend("name", pathid.Outbound, "std::str"))
	inner.AttachChild(grandchild)
	wrapper.AttachChild(inner)

	FuseScopeBranch(parent, wrapper)

	require.Len(t, parent.Children(), 1)
	adopted := parent.Children()[0]
	assert.Nil(t, adopted.PathID)
	require.Len(t, adopted.Children(), 1)
	assert.Same(t, grandchild, adopted.Children()[0])
}

func TestScopedSet_ReassignWrapsVisibleDuplicate(t *testing.T) {
	ctx := testContext(t)
	stype := typeByName(t, ctx, "default::Person")

	first, err := ScopedSet(ctx, ClassSet(ctx, stype, nil), nil, nil, false)
	require.NoError(t, err)
	_, err = RegisterSetInScope(ctx, first)
	require.NoError(t, err)

	second, err := ScopedSet(ctx, ClassSet(ctx, stype, nil), nil, nil, false)
	require.NoError(t, err)

	assert.NotEqual(t, first.PathID.Key(), second.PathID.Key())
	assert.GreaterOrEqual(t, second.ScopeID, 0)
}

func TestAssignSetScope_StableIDs(t *testing.T) {
	ctx := testContext(t)
	node := scope.New()
	s := ClassSet(ctx, typeByName(t, ctx, "default::Person"), nil)

	AssignSetScope(ctx, s, node)
	id := s.ScopeID

	AssignSetScope(ctx, s, node)
	assert.Equal(t, id, s.ScopeID, "re-registration keeps the first id")
	assert.Same(t, node, ctx.Env.ScopeNode(id))
	assert.Nil(t, ctx.Env.ScopeNode(99))
}
