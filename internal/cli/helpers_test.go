package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testSchemaCUE = `
module: "default"

type: Person: {
	properties: name: { target: "std::str", required: true }
	properties: greeting: { target: "std::str", expr: "'hello'" }
	links: friends: {
		target: "Person"
		multi:  true
		properties: strength: { target: "std::int64" }
	}
}

type: Employee: {
	extending: ["Person"]
	properties: salary: { target: "std::int64" }
}
`

// writeSchemaFile writes the shared test schema to a temp .cue file.
func writeSchemaFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.cue")
	require.NoError(t, os.WriteFile(path, []byte(testSchemaCUE), 0o644))
	return path
}

// executeCommand runs a command with captured stdout and stderr.
func executeCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
