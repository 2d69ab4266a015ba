package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

// SchemaSummary is the structured result of a validate run.
type SchemaSummary struct {
	Valid bool          `json:"valid" yaml:"valid"`
	Types []TypeSummary `json:"types,omitempty" yaml:"types,omitempty"`
}

// TypeSummary describes one declared type.
type TypeSummary struct {
	Name     string           `json:"name" yaml:"name"`
	Kind     string           `json:"kind" yaml:"kind"` // "object" | "scalar" | "view" | "tuple"
	Extends  []string         `json:"extends,omitempty" yaml:"extends,omitempty"`
	ViewOf   string           `json:"view_of,omitempty" yaml:"view_of,omitempty"`
	Pointers []PointerSummary `json:"pointers,omitempty" yaml:"pointers,omitempty"`
}

// PointerSummary describes one pointer reachable from a type.
type PointerSummary struct {
	Name      string `json:"name" yaml:"name"`
	Kind      string `json:"kind" yaml:"kind"` // "link" | "property"
	Target    string `json:"target" yaml:"target"`
	Many      bool   `json:"many,omitempty" yaml:"many,omitempty"`
	Required  bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Computed  bool   `json:"computed,omitempty" yaml:"computed,omitempty"`
	Inherited bool   `json:"inherited,omitempty" yaml:"inherited,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema>",
		Short: "Validate a schema and list its declarations",
		Long: `Validate a schema source and report every declared type.

The schema is fully built: base chains, pointer targets, and view base
types are resolved, so any dangling reference fails validation. On
success the declared types are listed with their pointers.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, schemaPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := LoadSchema(schemaPath)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return WrapExitError(ExitFailure, loadErr.Error(), err)
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, err.Error(), err)
	}

	summary := summarizeSchema(s)
	formatter.VerboseLog("Validated %d declared type(s)", len(summary.Types))

	return outputSchemaSummary(formatter, summary)
}

// summarizeSchema lists every user-declared type in name order. Builtin
// std and schema module entries are omitted.
func summarizeSchema(s *schema.Schema) *SchemaSummary {
	summary := &SchemaSummary{Valid: true}

	for _, tn := range s.TypeNames() {
		if isBuiltinTypeName(tn) {
			continue
		}
		typ, _ := s.TypeByName(tn)
		summary.Types = append(summary.Types, summarizeType(s, typ))
	}

	return summary
}

func isBuiltinTypeName(name string) bool {
	return name == schema.AnyTypeName ||
		strings.HasPrefix(name, "std::") ||
		strings.HasPrefix(name, "schema::")
}

func summarizeType(s *schema.Schema, typ schema.Type) TypeSummary {
	switch t := typ.(type) {
	case *schema.ObjectType:
		if t.IsView() {
			return TypeSummary{Name: t.Name, Kind: "view", ViewOf: t.ViewOf}
		}
		ts := TypeSummary{Name: t.Name, Kind: "object", Extends: declaredBases(t.Bases)}
		for _, name := range s.PointerNames(t) {
			if name == schema.TypePointerName {
				continue
			}
			_, ptr := s.ResolvePointer(t, name, pathid.Outbound, nil)
			if ptr == nil {
				continue
			}
			ts.Pointers = append(ts.Pointers, PointerSummary{
				Name:      name,
				Kind:      pointerKindName(ptr.Kind),
				Target:    ptr.Target,
				Many:      ptr.Cardinality == schema.Many,
				Required:  ptr.Required,
				Computed:  ptr.IsPureComputable(),
				Inherited: ptr.Source != t.Name,
			})
		}
		return ts

	case *schema.ScalarType:
		return TypeSummary{Name: t.Name, Kind: "scalar", Extends: declaredBases(t.Bases)}

	case *schema.TupleType:
		ts := TypeSummary{Name: t.Name, Kind: "tuple"}
		for _, el := range t.Elements {
			ts.Pointers = append(ts.Pointers, PointerSummary{
				Name:   el.Name,
				Kind:   "property",
				Target: el.Type,
			})
		}
		return ts

	default:
		return TypeSummary{Name: typ.SchemaName(), Kind: "unknown"}
	}
}

// declaredBases drops the implicit BaseObject root from a base list.
func declaredBases(bases []string) []string {
	var out []string
	for _, b := range bases {
		if b == schema.BaseObjectName {
			continue
		}
		out = append(out, b)
	}
	return out
}

func pointerKindName(k schema.PointerKind) string {
	if k == schema.Link {
		return "link"
	}
	return "property"
}

// outputSchemaSummary renders the validation result.
func outputSchemaSummary(formatter *OutputFormatter, summary *SchemaSummary) error {
	if formatter.Structured() {
		return formatter.Success(summary)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Schema valid: %d type(s)\n\n", len(summary.Types))

	for _, ts := range summary.Types {
		header := fmt.Sprintf("%s (%s", ts.Name, ts.Kind)
		if len(ts.Extends) > 0 {
			header += " extending " + strings.Join(ts.Extends, ", ")
		}
		if ts.ViewOf != "" {
			header += " of " + ts.ViewOf
		}
		fmt.Fprintln(formatter.Writer, header+")")

		for _, ps := range ts.Pointers {
			line := fmt.Sprintf("  %s: %s (%s", ps.Name, ps.Target, ps.Kind)
			if ps.Many {
				line += ", many"
			}
			if ps.Required {
				line += ", required"
			}
			if ps.Computed {
				line += ", computed"
			}
			if ps.Inherited {
				line += ", inherited"
			}
			fmt.Fprintln(formatter.Writer, line+")")
		}
	}

	return nil
}
