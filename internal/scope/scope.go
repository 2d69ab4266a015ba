// Package scope implements the visibility tree built during path
// compilation.
//
// Each node optionally carries a PathID label; anonymous nodes are pure
// containers. A fenced node bounds visibility: paths registered inside a
// fence are not visible to expressions outside it. Exactly one tree is
// active per compiling query; detached branches built in isolated
// sub-contexts are merged back by the compiler's fusion operation.
package scope

import (
	"strings"

	"github.com/roach88/lumen/internal/pathid"
)

// Node is one node of the scope tree. The zero value is an anonymous,
// unfenced node with no children.
type Node struct {
	// PathID labels the node with the path it grants visibility for.
	// Nil for anonymous container nodes.
	PathID *pathid.PathID

	// Fenced marks a visibility boundary.
	Fenced bool

	// UnnestFence additionally blocks unnesting of aggregated paths
	// through this node.
	UnnestFence bool

	// Namespaces holds the tags minted for statements compiled under
	// this node; computable expansion inherits them at the call site.
	Namespaces pathid.NamespaceSet

	parent   *Node
	children []*Node

	// id is assigned when the owning compiler registers the node; -1
	// until then.
	id int
}

// New returns a fresh anonymous root node.
func New() *Node {
	return &Node{id: -1}
}

// NewFence returns a fresh anonymous fenced node.
func NewFence() *Node {
	return &Node{Fenced: true, id: -1}
}

// NewLabeled returns a node labeled with the given path identity.
func NewLabeled(id pathid.PathID) *Node {
	cp := id
	return &Node{PathID: &cp, id: -1}
}

// Parent returns the node's parent, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the node's direct children. The returned slice must not
// be mutated.
func (n *Node) Children() []*Node { return n.children }

// ID returns the registration id assigned by the compiler, or -1.
func (n *Node) ID() int { return n.id }

// SetID records the registration id. Called once per node by the compiler.
func (n *Node) SetID(id int) { n.id = id }

// AttachChild links child directly under n, detaching it from any previous
// parent.
func (n *Node) AttachChild(child *Node) {
	child.Detach()
	child.parent = n
	n.children = append(n.children, child)
}

// Detach removes n from its parent, leaving it as the root of its own
// subtree.
func (n *Node) Detach() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// FindChild returns the direct child labeled with id, or nil.
func (n *Node) FindChild(id pathid.PathID) *Node {
	key := id.Key()
	for _, c := range n.children {
		if c.PathID != nil && c.PathID.Key() == key {
			return c
		}
	}
	return nil
}

// FindDescendant returns the first node labeled with id in a depth-first
// walk of n's subtree, excluding n itself. Returns nil if the path is not
// registered below n.
func (n *Node) FindDescendant(id pathid.PathID) *Node {
	key := id.Key()
	for _, c := range n.children {
		if c.PathID != nil && c.PathID.Key() == key {
			return c
		}
		if found := c.FindDescendant(id); found != nil {
			return found
		}
	}
	return nil
}

// Copy returns a deep copy of n's subtree. The copy is detached and
// shares no nodes with the original; PathID labels and namespace sets are
// duplicated.
func (n *Node) Copy() *Node {
	out := &Node{Fenced: n.Fenced, id: n.id}
	if n.PathID != nil {
		cp := *n.PathID
		out.PathID = &cp
	}
	if n.Namespaces != nil {
		out.Namespaces = n.Namespaces.Copy()
	}
	for _, c := range n.children {
		out.AttachChild(c.Copy())
	}
	return out
}

// Root returns the root of the tree containing n.
func (n *Node) Root() *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// DebugString renders the subtree for tests and diagnostics, one node per
// line with two-space indentation.
func (n *Node) DebugString() string {
	var b strings.Builder
	n.debugString(&b, 0)
	return b.String()
}

func (n *Node) debugString(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	switch {
	case n.PathID != nil:
		b.WriteString(n.PathID.String())
	case n.Fenced:
		b.WriteString("FENCE")
	default:
		b.WriteString("*")
	}
	b.WriteByte('\n')
	for _, c := range n.children {
		c.debugString(b, depth+1)
	}
}
