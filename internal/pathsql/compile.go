// Package pathsql lowers compiled path chains to parameterized SQL for
// SQLite.
//
// The target layout is the generic instance store:
//
//	objects(id, type)
//	object_properties(object_id, name, value)
//	object_links(source_id, name, target_id)
//	link_properties(source_id, name, target_id, prop, value)
//
// Every query includes ORDER BY with a deterministic tiebreaker, and all
// values are parameterized, never interpolated.
package pathsql

import (
	"fmt"
	"strings"

	"github.com/roach88/lumen/internal/compiler"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

// SQLCompiler compiles a path chain to parameterized SQL.
type SQLCompiler struct {
	env *compiler.Env
}

// NewSQLCompiler creates a compiler bound to the environment the chain
// was compiled in; the environment supplies the Set-to-type map and the
// schema snapshot for subtype expansion.
func NewSQLCompiler(env *compiler.Env) *SQLCompiler {
	return &SQLCompiler{env: env}
}

// Compile converts the chain ending at terminal to parameterized SQL.
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(terminal *ir.Set) (string, []any, error) {
	if terminal == nil {
		return "", nil, fmt.Errorf("cannot compile nil set")
	}

	chain, err := flatten(terminal)
	if err != nil {
		return "", nil, err
	}

	b := &queryBuilder{env: c.env}
	if err := b.build(chain); err != nil {
		return "", nil, err
	}
	// Placeholder order is all join params, then all WHERE params,
	// matching clause order in the rendered SQL.
	params := append(append([]any{}, b.joinParams...), b.whereParams...)
	return b.sql(), params, nil
}

// flatten walks the chain from the terminal back to the root and returns
// it root first.
func flatten(terminal *ir.Set) ([]*ir.Set, error) {
	var rev []*ir.Set
	for cur := terminal; cur != nil; {
		rev = append(rev, cur)
		switch {
		case cur.RPtr != nil:
			cur = cur.RPtr.Source
		case cur.Expr == nil:
			cur = nil
		default:
			return nil, fmt.Errorf("unsupported expression step %T at %s", cur.Expr, cur.PathID)
		}
	}

	chain := make([]*ir.Set, len(rev))
	for i, s := range rev {
		chain[len(rev)-1-i] = s
	}
	return chain, nil
}

// queryBuilder accumulates the FROM/JOIN/WHERE clauses while walking a
// chain root-to-tip.
type queryBuilder struct {
	env *compiler.Env

	selectExpr  string
	from        string
	joins       []string
	where       []string
	orderBy     []string
	joinParams  []any
	whereParams []any

	objCount  int
	propCount int
	linkCount int

	// alias of the objects row the next step traverses from
	cur string
}

func (b *queryBuilder) build(chain []*ir.Set) error {
	for i, set := range chain {
		if i == 0 {
			if set.RPtr != nil {
				return fmt.Errorf("chain root has an incoming edge")
			}
			b.buildRoot(set)
			continue
		}
		if err := b.buildStep(set); err != nil {
			return err
		}
	}

	if b.selectExpr == "" {
		// Object-valued tip: select the object row itself.
		b.selectExpr = b.cur + ".id, " + b.cur + ".type"
	}
	return nil
}

func (b *queryBuilder) buildRoot(set *ir.Set) {
	alias := b.nextObjAlias()
	b.from = "objects " + alias
	b.cur = alias
	b.constrainType(alias, b.typeOf(set))
	b.orderBy = append(b.orderBy, alias+".id ASC")
}

func (b *queryBuilder) buildStep(set *ir.Set) error {
	edge := set.RPtr
	if edge == nil {
		return fmt.Errorf("non-root step %s has no incoming edge", set.PathID)
	}

	switch {
	case edge.Kind == ir.TypeIndirection:
		// Narrowing constrains the current row; optional indirections
		// are non-filtering and add nothing.
		if !edge.Optional {
			b.constrainType(b.cur, b.typeOf(set))
		}
		return nil

	case set.Expr != nil:
		// A computed pointer carries its expansion as the set's
		// expression; it has no stored rows to join against.
		return fmt.Errorf("computed pointer %q has no stored rows", edge.Ptr.ShortName())

	case edge.Ptr.IsLinkProperty():
		return b.buildLinkPropertyStep(edge)

	case edge.Ptr.Kind == schema.Property:
		return b.buildPropertyStep(edge)

	default:
		return b.buildLinkStep(set, edge)
	}
}

func (b *queryBuilder) buildLinkStep(set *ir.Set, edge *ir.Pointer) error {
	linkAlias := b.nextLinkAlias()
	objAlias := b.nextObjAlias()

	if edge.Direction == pathid.Inbound {
		b.joins = append(b.joins,
			fmt.Sprintf("JOIN object_links %s ON %s.target_id = %s.id AND %s.name = ?",
				linkAlias, linkAlias, b.cur, linkAlias),
			fmt.Sprintf("JOIN objects %s ON %s.id = %s.source_id", objAlias, objAlias, linkAlias),
		)
	} else {
		b.joins = append(b.joins,
			fmt.Sprintf("JOIN object_links %s ON %s.source_id = %s.id AND %s.name = ?",
				linkAlias, linkAlias, b.cur, linkAlias),
			fmt.Sprintf("JOIN objects %s ON %s.id = %s.target_id", objAlias, objAlias, linkAlias),
		)
	}
	b.joinParams = append(b.joinParams, edge.Ptr.ShortName())

	b.cur = objAlias
	b.constrainType(objAlias, b.typeOf(set))
	b.orderBy = append(b.orderBy, objAlias+".id ASC")
	return nil
}

func (b *queryBuilder) buildPropertyStep(edge *ir.Pointer) error {
	alias := b.nextPropAlias()
	b.joins = append(b.joins,
		fmt.Sprintf("JOIN object_properties %s ON %s.object_id = %s.id AND %s.name = ?",
			alias, alias, b.cur, alias))
	b.joinParams = append(b.joinParams, edge.Ptr.ShortName())

	b.selectExpr = alias + ".value"
	b.orderBy = append(b.orderBy, alias+".value ASC")
	return nil
}

func (b *queryBuilder) buildLinkPropertyStep(edge *ir.Pointer) error {
	// The traversed link is the current row's incoming edge; its join
	// alias is the most recent link alias.
	if b.linkCount == 0 {
		return fmt.Errorf("link property %q with no traversed link", edge.Ptr.ShortName())
	}
	linkAlias := fmt.Sprintf("l%d", b.linkCount-1)

	alias := b.nextPropAlias()
	b.joins = append(b.joins,
		fmt.Sprintf("JOIN link_properties %s ON %s.source_id = %s.source_id AND %s.target_id = %s.target_id AND %s.name = %s.name AND %s.prop = ?",
			alias, alias, linkAlias, alias, linkAlias, alias, linkAlias, alias))
	b.joinParams = append(b.joinParams, edge.Ptr.ShortName())

	b.selectExpr = alias + ".value"
	b.orderBy = append(b.orderBy, alias+".value ASC")
	return nil
}

// constrainType restricts an objects row to the concrete subtypes of
// want. Primitive-typed sets carry no objects row and add nothing.
func (b *queryBuilder) constrainType(alias string, want schema.Type) {
	obj, ok := want.(*schema.ObjectType)
	if !ok {
		return
	}
	concrete := b.concreteSubtypes(obj)
	if len(concrete) == 0 {
		return
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(concrete)), ", ")
	b.where = append(b.where, fmt.Sprintf("%s.type IN (%s)", alias, placeholders))
	for _, name := range concrete {
		b.whereParams = append(b.whereParams, name)
	}
}

// concreteSubtypes lists want and every non-view object type extending
// it, in sorted name order.
func (b *queryBuilder) concreteSubtypes(want *schema.ObjectType) []string {
	s := b.env.Schema
	base := s.PeelView(want)

	var out []string
	for _, tn := range s.TypeNames() {
		t, _ := s.TypeByName(tn)
		obj, ok := t.(*schema.ObjectType)
		if !ok || obj.IsView() {
			continue
		}
		if s.IsSubclass(obj, base) {
			out = append(out, tn)
		}
	}
	return out
}

func (b *queryBuilder) typeOf(set *ir.Set) schema.Type {
	return b.env.SetTypes[set]
}

func (b *queryBuilder) sql() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.selectExpr)
	sb.WriteString(" FROM ")
	sb.WriteString(b.from)
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(b.orderBy, ", "))
	return sb.String()
}

func (b *queryBuilder) nextObjAlias() string {
	a := fmt.Sprintf("o%d", b.objCount)
	b.objCount++
	return a
}

func (b *queryBuilder) nextPropAlias() string {
	a := fmt.Sprintf("p%d", b.propCount)
	b.propCount++
	return a
}

func (b *queryBuilder) nextLinkAlias() string {
	a := fmt.Sprintf("l%d", b.linkCount)
	b.linkCount++
	return a
}
