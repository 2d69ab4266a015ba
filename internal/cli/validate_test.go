package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateText(t *testing.T) {
	schemaPath := writeSchemaFile(t)

	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, _, err := executeCommand(t, cmd, schemaPath)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Schema valid: 2 type(s)")
	assert.Contains(t, out, "default::Person (object)")
	assert.Contains(t, out, "default::Employee (object extending default::Person)")
	assert.Contains(t, out, "name: std::str (property, required)")
	assert.Contains(t, out, "friends: default::Person (link, many)")
	assert.Contains(t, out, "greeting: std::str (property, computed)")
}

func TestValidateInheritedPointers(t *testing.T) {
	schemaPath := writeSchemaFile(t)

	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, _, err := executeCommand(t, cmd, schemaPath)
	require.NoError(t, err)

	// Employee lists Person's pointers as inherited.
	assert.Contains(t, out, "name: std::str (property, required, inherited)")
	assert.Contains(t, out, "salary: std::int64 (property)")
}

func TestValidateJSON(t *testing.T) {
	schemaPath := writeSchemaFile(t)

	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	out, _, err := executeCommand(t, cmd, schemaPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["valid"])

	types, ok := data["types"].([]interface{})
	require.True(t, ok)
	assert.Len(t, types, 2)
}

func TestValidateBadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
type: Person: {
	links: pet: { target: "Animal" }
}
`), 0o644))

	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, _, err := executeCommand(t, cmd, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "default::Animal")
}

func TestValidateMissingSchema(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, _, err := executeCommand(t, cmd, filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}

func TestSnapshotCommand(t *testing.T) {
	schemaPath := writeSchemaFile(t)
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	cmd := NewSnapshotCommand(&RootOptions{Format: "text"})
	out, _, err := executeCommand(t, cmd, "--output", dbPath, schemaPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Wrote 2 type(s) to "+dbPath)

	// The written catalog round-trips through validate.
	validateCmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, _, err = executeCommand(t, validateCmd, dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "default::Person (object)")
}

func TestSnapshotCommandJSON(t *testing.T) {
	schemaPath := writeSchemaFile(t)
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	cmd := NewSnapshotCommand(&RootOptions{Format: "json"})
	out, _, err := executeCommand(t, cmd, "--output", dbPath, schemaPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), data["types"])
}

func TestSnapshotBadSchema(t *testing.T) {
	cmd := NewSnapshotCommand(&RootOptions{Format: "text"})
	_, _, err := executeCommand(t, cmd,
		"--output", filepath.Join(t.TempDir(), "out.db"),
		filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
