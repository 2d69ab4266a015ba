package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lumen/internal/compiler"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/parser"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	SchemaPath string
}

// CompiledPath is the structured result of compiling one path expression.
type CompiledPath struct {
	Path  string     `json:"path" yaml:"path"`
	Type  string     `json:"type" yaml:"type"`
	Steps []PathStep `json:"steps" yaml:"steps"`
}

// PathStep describes one node of the compiled traversal chain, root
// first.
type PathStep struct {
	Kind     string `json:"kind" yaml:"kind"` // "root" | "link" | "property" | "filter" | "tuple-field"
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Inbound  bool   `json:"inbound,omitempty" yaml:"inbound,omitempty"`
	Type     string `json:"type" yaml:"type"`
	Many     bool   `json:"many,omitempty" yaml:"many,omitempty"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
	Computed bool   `json:"computed,omitempty" yaml:"computed,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <path-expression>",
		Short: "Compile a path expression against a schema",
		Long: `Compile a path expression into its traversal chain.

The expression is resolved step by step against the schema: links and
properties are looked up on the preceding step's type, [IS ...] filters
narrow polymorphic traversals, and computed pointers are expanded from
their stored definitions.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.SchemaPath, "schema", "s", "", "schema source: .cue file, CUE directory, or .db catalog")
	cmd.MarkFlagRequired("schema")

	return cmd
}

func runCompile(opts *CompileOptions, pathExpr string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting structured output
		Verbose:   opts.Verbose,
	}

	s, err := LoadSchema(opts.SchemaPath)
	if err != nil {
		return outputCommandError(formatter, err)
	}
	formatter.VerboseLog("Loaded schema from %s", opts.SchemaPath)

	expr, err := parser.New().ParseExpr(pathExpr)
	if err != nil {
		var parseErr *parser.ParseError
		if errors.As(err, &parseErr) {
			return outputCompileError(formatter, ErrCodeParse, parseErr.Error(), nil)
		}
		return outputCompileError(formatter, ErrCodeParse, err.Error(), nil)
	}

	env := compiler.NewEnv(s, compiler.EnvOptions{Parser: parser.New()})
	ctx := compiler.NewContext(env)
	formatter.VerboseLog("Compile invocation %s", env.ID)

	set, err := compiler.CompileExpr(ctx, expr)
	if err != nil {
		code := classifyCompileError(err)
		_ = formatter.Error(code, err.Error(), nil)
		if code == ErrCodeInternal {
			return WrapExitError(ExitCommandError, err.Error(), err)
		}
		return WrapExitError(ExitFailure, err.Error(), err)
	}

	result := renderPath(env, set)
	return outputCompiledPath(formatter, result)
}

// classifyCompileError maps the compiler's three error classes to CLI
// error codes.
func classifyCompileError(err error) string {
	switch {
	case compiler.IsReferenceError(err):
		return ErrCodeReference
	case compiler.IsQueryError(err):
		return ErrCodeQuery
	case compiler.IsInternalError(err):
		return ErrCodeInternal
	default:
		return ErrCodeGeneric
	}
}

// renderPath walks the terminal set back to its root and emits the chain
// root first.
func renderPath(env *compiler.Env, terminal *ir.Set) *CompiledPath {
	var steps []PathStep

	cur := unwrapStmt(terminal)
	for cur != nil {
		steps = append([]PathStep{describeStep(env, cur)}, steps...)
		cur = previousSet(cur)
	}

	return &CompiledPath{
		Path:  terminal.PathID.String(),
		Type:  typeName(env, terminal),
		Steps: steps,
	}
}

// unwrapStmt peels implicit statement wrappers so the chain walk starts
// at the traversal set itself.
func unwrapStmt(s *ir.Set) *ir.Set {
	for {
		stmt, ok := s.Expr.(*ir.SelectStmt)
		if !ok || !stmt.ImplicitWrapper {
			return s
		}
		s = stmt.Result
	}
}

func previousSet(s *ir.Set) *ir.Set {
	if s.RPtr != nil {
		return s.RPtr.Source
	}
	if ti, ok := s.Expr.(*ir.TupleIndirection); ok {
		return ti.Source
	}
	return nil
}

func describeStep(env *compiler.Env, s *ir.Set) PathStep {
	step := PathStep{Type: typeName(env, s)}

	switch {
	case s.RPtr != nil:
		edge := s.RPtr
		step.Inbound = edge.Direction == pathid.Inbound
		step.Many = edge.Many
		step.Optional = edge.Optional
		if edge.Kind == ir.Traversal {
			step.Name = edge.Ptr.ShortName()
		}
		switch {
		case edge.Kind == ir.TypeIndirection:
			step.Kind = "filter"
		case edge.Ptr.IsLinkProperty():
			step.Kind = "link-property"
		case edge.Ptr.Kind == schema.Link:
			step.Kind = "link"
		default:
			step.Kind = "property"
		}
		// Computed pointers carry their expanded definition on the set.
		if s.Expr != nil {
			step.Computed = true
		}

	default:
		if ti, ok := s.Expr.(*ir.TupleIndirection); ok {
			step.Kind = "tuple-field"
			step.Name = ti.Name
		} else {
			step.Kind = "root"
		}
	}

	return step
}

func typeName(env *compiler.Env, s *ir.Set) string {
	if t, ok := env.SetTypes[s]; ok {
		return t.SchemaName()
	}
	return "<unknown>"
}

// outputCompiledPath renders the chain in the configured format.
func outputCompiledPath(formatter *OutputFormatter, result *CompiledPath) error {
	if formatter.Structured() {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ %s : %s\n\n", result.Path, result.Type)
	fmt.Fprintln(formatter.Writer, "Steps:")
	for i, step := range result.Steps {
		fmt.Fprintf(formatter.Writer, "  %d. %s\n", i+1, formatStep(step))
	}
	return nil
}

// formatStep renders one chain node as a text line.
func formatStep(step PathStep) string {
	switch step.Kind {
	case "root":
		return fmt.Sprintf("%s (root)", step.Type)
	case "filter":
		line := fmt.Sprintf("[IS %s]", step.Type)
		if step.Optional {
			line += " (implicit)"
		}
		return line
	case "tuple-field":
		return fmt.Sprintf(".%s -> %s", step.Name, step.Type)
	}

	prefix := "."
	if step.Inbound {
		prefix = ".<"
	}
	if step.Kind == "link-property" {
		prefix = "@"
	}
	line := fmt.Sprintf("%s%s -> %s (%s", prefix, step.Name, step.Type, step.Kind)
	if step.Many {
		line += ", many"
	}
	if step.Computed {
		line += ", computed"
	}
	return line + ")"
}

// outputCommandError reports a schema-loading failure.
func outputCommandError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
	}
	return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
}

// outputCompileError outputs a single command-level error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}
