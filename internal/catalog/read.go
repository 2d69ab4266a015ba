package catalog

import (
	"context"
	"fmt"

	"github.com/roach88/lumen/internal/schema"
)

// Load reads every declaration from the catalog into a schema snapshot.
// Results are read in deterministic name order so repeated loads of the
// same catalog produce identical builder error output.
func (c *Catalog) Load(ctx context.Context) (*schema.Schema, error) {
	b := schema.NewBuilder()

	if err := c.loadTypes(ctx, b); err != nil {
		return nil, err
	}
	if err := c.loadPointers(ctx, b); err != nil {
		return nil, err
	}

	s, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return s, nil
}

func (c *Catalog) loadTypes(ctx context.Context, b *schema.Builder) error {
	rows, err := c.db.QueryContext(ctx, `
		SELECT name, kind, COALESCE(view_of, ''), COALESCE(view_expr, ''), tuple_named
		FROM types
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return fmt.Errorf("query types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, kind, viewOf, viewExpr string
		var tupleNamed bool
		if err := rows.Scan(&name, &kind, &viewOf, &viewExpr, &tupleNamed); err != nil {
			return fmt.Errorf("scan type: %w", err)
		}

		switch kind {
		case "object":
			bases, err := c.readBases(ctx, name, "extends")
			if err != nil {
				return err
			}
			b.AddObject(name, bases...)

		case "scalar":
			bases, err := c.readBases(ctx, name, "extends")
			if err != nil {
				return err
			}
			casts, err := c.readBases(ctx, name, "castable")
			if err != nil {
				return err
			}
			b.AddScalar(name, bases, casts...)

		case "view":
			b.AddView(name, viewOf, viewExpr)

		case "tuple":
			elements, err := c.readTupleElements(ctx, name)
			if err != nil {
				return err
			}
			b.AddTuple(name, tupleNamed, elements...)

		default:
			return fmt.Errorf("type %q: unknown kind %q", name, kind)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate types: %w", err)
	}
	return nil
}

func (c *Catalog) readBases(ctx context.Context, typeName, relation string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT base_name
		FROM type_bases
		WHERE type_name = ? AND relation = ?
		ORDER BY ord ASC
	`, typeName, relation)
	if err != nil {
		return nil, fmt.Errorf("query bases for %q: %w", typeName, err)
	}
	defer rows.Close()

	var bases []string
	for rows.Next() {
		var base string
		if err := rows.Scan(&base); err != nil {
			return nil, fmt.Errorf("scan base: %w", err)
		}
		bases = append(bases, base)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bases: %w", err)
	}
	return bases, nil
}

func (c *Catalog) readTupleElements(ctx context.Context, typeName string) ([]schema.TupleElement, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT name, elem_type
		FROM tuple_elements
		WHERE type_name = ?
		ORDER BY ord ASC
	`, typeName)
	if err != nil {
		return nil, fmt.Errorf("query tuple elements for %q: %w", typeName, err)
	}
	defer rows.Close()

	var elements []schema.TupleElement
	for rows.Next() {
		var el schema.TupleElement
		if err := rows.Scan(&el.Name, &el.Type); err != nil {
			return nil, fmt.Errorf("scan tuple element: %w", err)
		}
		elements = append(elements, el)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tuple elements: %w", err)
	}
	return elements, nil
}

// loadPointers declares ordinary pointers before link properties so the
// owning link always exists when its properties are added.
func (c *Catalog) loadPointers(ctx context.Context, b *schema.Builder) error {
	rows, err := c.db.QueryContext(ctx, `
		SELECT source, owner_link, name, kind, target, multi, required, expr, default_expr
		FROM pointers
		ORDER BY owner_link = '' DESC, source COLLATE BINARY ASC, name COLLATE BINARY ASC
	`)
	if err != nil {
		return fmt.Errorf("query pointers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source, ownerLink, name, kind, target string
		var spec schema.PointerSpec
		if err := rows.Scan(&source, &ownerLink, &name, &kind, &target,
			&spec.Many, &spec.Required, &spec.Expr, &spec.Default); err != nil {
			return fmt.Errorf("scan pointer: %w", err)
		}

		switch {
		case ownerLink != "":
			b.AddLinkProperty(source, ownerLink, name, target, spec)
		case kind == "link":
			b.AddLink(source, name, target, spec)
		default:
			b.AddProperty(source, name, target, spec)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate pointers: %w", err)
	}
	return nil
}
