package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

// Snapshot replaces the catalog contents with the declarations of s.
// Builtin std and schema module entries are not persisted; every load
// reseeds them.
func (c *Catalog) Snapshot(ctx context.Context, s *schema.Schema) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"pointers", "tuple_elements", "type_bases", "types"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("snapshot: clear %s: %w", table, err)
		}
	}

	for _, tn := range s.TypeNames() {
		if isBuiltinName(tn) {
			continue
		}
		typ, _ := s.TypeByName(tn)
		if err := writeType(ctx, tx, s, typ); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot: commit: %w", err)
	}
	return nil
}

func isBuiltinName(name string) bool {
	return name == schema.AnyTypeName ||
		strings.HasPrefix(name, "std::") ||
		strings.HasPrefix(name, "schema::")
}

func writeType(ctx context.Context, tx *sql.Tx, s *schema.Schema, typ schema.Type) error {
	switch t := typ.(type) {
	case *schema.ObjectType:
		if t.IsView() {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO types (name, kind, view_of, view_expr)
				VALUES (?, 'view', ?, ?)
			`, t.Name, t.ViewOf, t.ViewExpr)
			if err != nil {
				return fmt.Errorf("snapshot: write view %q: %w", t.Name, err)
			}
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO types (name, kind) VALUES (?, 'object')
		`, t.Name); err != nil {
			return fmt.Errorf("snapshot: write type %q: %w", t.Name, err)
		}
		if err := writeBases(ctx, tx, t.Name, "extends", t.Bases); err != nil {
			return err
		}
		return writePointers(ctx, tx, s, t)

	case *schema.ScalarType:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO types (name, kind) VALUES (?, 'scalar')
		`, t.Name); err != nil {
			return fmt.Errorf("snapshot: write scalar %q: %w", t.Name, err)
		}
		if err := writeBases(ctx, tx, t.Name, "extends", t.Bases); err != nil {
			return err
		}
		return writeBases(ctx, tx, t.Name, "castable", t.CastableTo)

	case *schema.TupleType:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO types (name, kind, tuple_named) VALUES (?, 'tuple', ?)
		`, t.Name, t.Named); err != nil {
			return fmt.Errorf("snapshot: write tuple %q: %w", t.Name, err)
		}
		for i, el := range t.Elements {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO tuple_elements (type_name, ord, name, elem_type)
				VALUES (?, ?, ?, ?)
			`, t.Name, i, el.Name, el.Type); err != nil {
				return fmt.Errorf("snapshot: write tuple element %q.%s: %w", t.Name, el.Name, err)
			}
		}
		return nil

	default:
		return fmt.Errorf("snapshot: type %q: unsupported kind %T", typ.SchemaName(), typ)
	}
}

func writeBases(ctx context.Context, tx *sql.Tx, typeName, relation string, bases []string) error {
	for i, base := range bases {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO type_bases (type_name, base_name, relation, ord)
			VALUES (?, ?, ?, ?)
		`, typeName, base, relation, i); err != nil {
			return fmt.Errorf("snapshot: write base %q of %q: %w", base, typeName, err)
		}
	}
	return nil
}

// writePointers persists the pointers declared directly on obj. Inherited
// pointers are resolvable after load through the base chain, so only the
// declaring type stores them.
func writePointers(ctx context.Context, tx *sql.Tx, s *schema.Schema, obj *schema.ObjectType) error {
	for _, name := range s.PointerNames(obj) {
		if name == schema.TypePointerName {
			continue
		}
		_, ptr := s.ResolvePointer(obj, name, pathid.Outbound, nil)
		if ptr == nil || ptr.Source != obj.Name {
			continue
		}

		if err := writePointer(ctx, tx, obj.Name, ptr, ""); err != nil {
			return err
		}
		for _, propName := range s.PointerNames(ptr) {
			if err := writePointer(ctx, tx, obj.Name, ptr.Property(propName), ptr.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func writePointer(ctx context.Context, tx *sql.Tx, source string, ptr *schema.Pointer, ownerLink string) error {
	kind := "property"
	if ptr.Kind == schema.Link {
		kind = "link"
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pointers
		(source, owner_link, name, kind, target, multi, required, expr, default_expr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		source,
		ownerLink,
		ptr.Name,
		kind,
		ptr.Target,
		ptr.Cardinality == schema.Many,
		ptr.Required,
		ptr.Expr,
		ptr.Default,
	)
	if err != nil {
		return fmt.Errorf("snapshot: write pointer %q: %w", ptr.SchemaName(), err)
	}
	return nil
}
