package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lumen/internal/catalog"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	Output string // catalog database path
}

// SnapshotResult is the structured result of a snapshot run.
type SnapshotResult struct {
	Catalog string `json:"catalog" yaml:"catalog"`
	Types   int    `json:"types" yaml:"types"`
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot <schema>",
		Short: "Persist a schema into a SQLite catalog",
		Long: `Build a schema from CUE declarations and persist it into a SQLite
catalog database. An existing catalog is replaced in one transaction.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "catalog database path")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runSnapshot(opts *SnapshotOptions, schemaPath string, cmd *cobra.Command) error {
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
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	c, err := catalog.Open(opts.Output)
	if err != nil {
		return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("opening catalog: %v", err), nil)
	}
	defer c.Close()

	if err := c.Snapshot(context.Background(), s); err != nil {
		return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing catalog: %v", err), nil)
	}

	declared := len(summarizeSchema(s).Types)
	formatter.VerboseLog("Snapshot wrote %d type(s) to %s", declared, opts.Output)

	result := &SnapshotResult{Catalog: opts.Output, Types: declared}
	if formatter.Structured() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Wrote %d type(s) to %s\n", result.Types, result.Catalog)
	return nil
}
