package pathid

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Direction is the traversal direction of a pointer step.
type Direction string

const (
	// Outbound follows a pointer from its source to its target.
	Outbound Direction = ">"

	// Inbound follows a pointer backwards, from its target to its source.
	Inbound Direction = "<"
)

// String returns the human-readable direction name.
func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// StepKind discriminates the extension kinds a PathID can record.
type StepKind int

const (
	// StepPointer is an ordinary link or property traversal.
	StepPointer StepKind = iota

	// StepTypeIndirection is a polymorphic narrowing to a target type.
	StepTypeIndirection

	// StepTupleField is a tuple field access.
	StepTupleField
)

// Step is one extension segment of a PathID.
type Step struct {
	Kind      StepKind
	Name      string    // pointer short name or tuple field name
	Direction Direction // meaningful for StepPointer
	Target    string    // far endpoint / filter type name
	Optional  bool      // StepTypeIndirection: filter was implicit-optional
	Many      bool      // StepTypeIndirection: incoming edge was already many
	LinkProp  bool      // StepPointer: traversal off the pointer itself (link property)
}

// PathID is the canonical identity of one compiled path.
//
// The zero value is not a valid PathID; construct one with FromType or
// FromAlias and grow it with Extend and friends.
type PathID struct {
	root    string
	steps   []Step
	ns      []Tag // sorted, no duplicates
	ptrPath bool  // identifies the final pointer itself, not its endpoint
}

// Tag is an opaque namespace marker merged into PathIDs to keep paths from
// distinct recompilation contexts apart. Weak tags are ignored by the weak
// prefix iteration used for view remap lookups.
type Tag struct {
	Name string
	Weak bool
}

// NewWeakTag returns a weak namespace tag with the given name.
func NewWeakTag(name string) Tag { return Tag{Name: name, Weak: true} }

// NamespaceSet is a set of namespace tags.
type NamespaceSet map[Tag]struct{}

// NewNamespaceSet builds a set from the given tags.
func NewNamespaceSet(tags ...Tag) NamespaceSet {
	s := make(NamespaceSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Copy returns an independent copy of the set.
func (s NamespaceSet) Copy() NamespaceSet {
	out := make(NamespaceSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// Union adds every tag in other to a copy of s and returns the copy.
func (s NamespaceSet) Union(other NamespaceSet) NamespaceSet {
	out := s.Copy()
	for t := range other {
		out[t] = struct{}{}
	}
	return out
}

// Add inserts a tag in place.
func (s NamespaceSet) Add(t Tag) { s[t] = struct{}{} }

// FromType returns a PathID rooted at the given type name.
func FromType(typeName string) PathID {
	return PathID{root: norm.NFC.String(typeName)}
}

// FromAlias returns a PathID rooted at a derived alias. The alias is
// qualified with the reserved __derived__ module so it can never collide
// with a schema type name.
func FromAlias(alias string) PathID {
	return PathID{root: norm.NFC.String("__derived__::" + alias)}
}

// Root returns the root tag.
func (p PathID) Root() string { return p.root }

// Steps returns the extension segments. The returned slice must not be
// mutated.
func (p PathID) Steps() []Step { return p.steps }

// Namespace returns the active tag set as an independent NamespaceSet.
func (p PathID) Namespace() NamespaceSet {
	s := make(NamespaceSet, len(p.ns))
	for _, t := range p.ns {
		s[t] = struct{}{}
	}
	return s
}

// IsPtrPath reports whether the identity names the final pointer itself
// rather than its far endpoint (the base for link property traversals).
func (p PathID) IsPtrPath() bool { return p.ptrPath }

// IsTypeIndirectionPath reports whether the final segment is a polymorphic
// type indirection.
func (p PathID) IsTypeIndirectionPath() bool {
	return len(p.steps) > 0 && p.steps[len(p.steps)-1].Kind == StepTypeIndirection
}

func (p PathID) clone() PathID {
	out := PathID{root: p.root, ptrPath: p.ptrPath}
	out.steps = make([]Step, len(p.steps))
	copy(out.steps, p.steps)
	out.ns = make([]Tag, len(p.ns))
	copy(out.ns, p.ns)
	return out
}

// Extend returns a new PathID with one pointer traversal appended.
// Extending resets the ptr-path flag: the new identity names the step's
// far endpoint. Extending off a ptr-path base records the provenance on
// the step, so a link property and a same-named property on the link's
// endpoint can never share a Key.
func (p PathID) Extend(ptrName string, dir Direction, target string) PathID {
	out := p.clone()
	out.ptrPath = false
	out.steps = append(out.steps, Step{
		Kind:      StepPointer,
		Name:      norm.NFC.String(ptrName),
		Direction: dir,
		Target:    norm.NFC.String(target),
		LinkProp:  p.ptrPath,
	})
	return out
}

// ExtendTypeIndirection returns a new PathID narrowed to target.
func (p PathID) ExtendTypeIndirection(target string, optional, many bool) PathID {
	out := p.clone()
	out.ptrPath = false
	out.steps = append(out.steps, Step{
		Kind:     StepTypeIndirection,
		Name:     "__type__",
		Target:   norm.NFC.String(target),
		Optional: optional,
		Many:     many,
	})
	return out
}

// ExtendTupleField returns a new PathID for a tuple field access.
func (p PathID) ExtendTupleField(field, fieldType string) PathID {
	out := p.clone()
	out.ptrPath = false
	out.steps = append(out.steps, Step{
		Kind:   StepTupleField,
		Name:   norm.NFC.String(field),
		Target: norm.NFC.String(fieldType),
	})
	return out
}

// PtrPath returns the identity of the path's final pointer itself, used as
// the extension base for link properties.
func (p PathID) PtrPath() PathID {
	out := p.clone()
	out.ptrPath = true
	return out
}

// SrcPath returns the identity with the final segment removed.
func (p PathID) SrcPath() PathID {
	out := p.clone()
	if len(out.steps) > 0 {
		out.steps = out.steps[:len(out.steps)-1]
	}
	out.ptrPath = false
	return out
}

// MergeNamespace returns a copy of p with every tag in ns added to the
// active tag set.
func (p PathID) MergeNamespace(ns NamespaceSet) PathID {
	if len(ns) == 0 {
		return p
	}
	out := p.clone()
	have := make(map[Tag]struct{}, len(out.ns))
	for _, t := range out.ns {
		have[t] = struct{}{}
	}
	for t := range ns {
		if _, ok := have[t]; !ok {
			out.ns = append(out.ns, t)
		}
	}
	sortTags(out.ns)
	return out
}

// StripNamespace returns a copy of p with every tag in ns removed.
// StripNamespace(MergeNamespace(p, ns), ns) == p whenever ns is disjoint
// from p's existing tags.
func (p PathID) StripNamespace(ns NamespaceSet) PathID {
	if len(ns) == 0 {
		return p
	}
	out := PathID{root: p.root, ptrPath: p.ptrPath}
	out.steps = make([]Step, len(p.steps))
	copy(out.steps, p.steps)
	for _, t := range p.ns {
		if _, drop := ns[t]; !drop {
			out.ns = append(out.ns, t)
		}
	}
	sortTags(out.ns)
	return out
}

// Prefixes returns every step prefix of p, shortest first, ending with p
// itself. Every prefix carries p's full tag set.
func (p PathID) Prefixes() []PathID {
	out := make([]PathID, 0, len(p.steps)+1)
	for n := 0; n <= len(p.steps); n++ {
		pre := PathID{root: p.root, steps: p.steps[:n], ns: p.ns}
		if n == len(p.steps) {
			pre.ptrPath = p.ptrPath
		}
		out = append(out, pre)
	}
	return out
}

// WeakNamespacePrefixes yields the same path in progressively weaker
// namespace flavors: p itself first, then p with each weak tag removed
// individually. The steps never change; only the tag set does. This is
// the lookup order for view remap tables.
func (p PathID) WeakNamespacePrefixes() []PathID {
	out := []PathID{p}
	for _, t := range p.ns {
		if t.Weak {
			out = append(out, p.StripNamespace(NewNamespaceSet(t)))
		}
	}
	return out
}

// Key returns the canonical string identity of p: sorted namespace tags,
// root, and rendered steps. Two PathIDs are the same path exactly when
// their Keys are equal.
func (p PathID) Key() string {
	var b strings.Builder
	if len(p.ns) > 0 {
		b.WriteByte('{')
		for i, t := range p.ns {
			if i > 0 {
				b.WriteByte(',')
			}
			if t.Weak {
				b.WriteByte('~')
			}
			b.WriteString(t.Name)
		}
		b.WriteByte('}')
	}
	b.WriteString(p.root)
	for _, s := range p.steps {
		switch s.Kind {
		case StepTypeIndirection:
			fmt.Fprintf(&b, "[IS %s]", s.Target)
		case StepTupleField:
			b.WriteByte('.')
			b.WriteString(s.Name)
		default:
			if s.LinkProp {
				b.WriteByte('@')
			} else {
				b.WriteByte('.')
				if s.Direction == Inbound {
					b.WriteByte('<')
				}
			}
			b.WriteString(s.Name)
		}
	}
	if p.ptrPath {
		b.WriteByte('@')
	}
	return b.String()
}

// String renders the identity without namespace tags, for diagnostics.
func (p PathID) String() string {
	stripped := p
	stripped.ns = nil
	return stripped.Key()
}

// Equal reports whether p and other denote the same path.
func (p PathID) Equal(other PathID) bool { return p.Key() == other.Key() }

func sortTags(tags []Tag) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Name != tags[j].Name {
			return tags[i].Name < tags[j].Name
		}
		return !tags[i].Weak && tags[j].Weak
	})
}
