package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFormatter_SuccessText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Success("done"))
	assert.Equal(t, "done\n", buf.String())
}

func TestFormatter_SuccessJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]int{"count": 3}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestFormatter_SuccessYAML(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "yaml", Writer: buf}

	require.NoError(t, f.Success(map[string]int{"count": 3}))

	var resp CLIResponse
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestFormatter_ErrorText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Error("E001", "something broke", nil))
	assert.Equal(t, "Error [E001]: something broke\n", buf.String())
}

func TestFormatter_ErrorTextVerboseDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, f.Error("E001", "something broke", "extra context"))
	assert.Contains(t, buf.String(), "Details: extra context")
}

func TestFormatter_ErrorJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Error("E005", "not found", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E005", resp.Error.Code)
	assert.Equal(t, "not found", resp.Error.Message)
}

func TestFormatter_Structured(t *testing.T) {
	assert.False(t, (&OutputFormatter{Format: "text"}).Structured())
	assert.True(t, (&OutputFormatter{Format: "json"}).Structured())
	assert.True(t, (&OutputFormatter{Format: "yaml"}).Structured())
}

func TestFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}
	f.VerboseLog("processed %d", 7)
	assert.Empty(t, out.String())
	assert.Equal(t, "processed 7\n", errOut.String())

	quiet := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut}
	quiet.VerboseLog("hidden")
	assert.Equal(t, "processed 7\n", errOut.String())
}

func TestFormatter_VerboseLogFallsBackToWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	f.VerboseLog("note")
	assert.Equal(t, "note\n", buf.String())
}

func TestExitError(t *testing.T) {
	base := fmt.Errorf("root cause")
	err := WrapExitError(ExitCommandError, "command failed", base)

	assert.Equal(t, "command failed: root cause", err.Error())
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExitError_NoWrapped(t *testing.T) {
	err := NewExitError(ExitFailure, "validation failed")
	assert.Equal(t, "validation failed", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestGetExitCode_PlainError(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
