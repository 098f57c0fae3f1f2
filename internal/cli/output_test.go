package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultrev/internal/engine"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(map[string]string{"item_id": "a"}, func(w io.Writer) {
		t.Fatal("text renderer must not run for json output")
	})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"item_id": "a"}, resp.Data)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("plain", nil))
	assert.Equal(t, "plain\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success(nil, func(w io.Writer) { fmt.Fprint(w, "rendered") }))
	assert.Equal(t, "rendered", buf.String())
}

func TestOutputFormatter_Error(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("NOT_FOUND", "no such item", map[string]string{"item_id": "x"}))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.NotNil(t, resp.Error.Details)

	buf.Reset()
	formatter = &OutputFormatter{Format: "text", Writer: buf, Verbose: true}
	require.NoError(t, formatter.Error("NOT_FOUND", "no such item", "x"))
	assert.Contains(t, buf.String(), "Error [NOT_FOUND]: no such item")
	assert.Contains(t, buf.String(), "Details: x")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	diag := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	formatter.VerboseLog("opened %s", "vault.db")
	assert.Empty(t, out.String())
	assert.Equal(t, "opened vault.db\n", diag.String())

	diag.Reset()
	formatter.Verbose = false
	formatter.VerboseLog("quiet")
	assert.Empty(t, diag.String())
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "verify", errors.New("gap")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "outer: verify: gap", wrapped.Error())
}

func TestEngineExitError(t *testing.T) {
	err := engineExitError("edit", &engine.Error{Code: engine.ErrCodeInvalidBase, Message: "base revision r9 does not exist"})
	assert.Equal(t, ExitCommandError, err.Code)
	assert.Contains(t, err.Error(), "edit [INVALID_BASE]")

	var e *engine.Error
	assert.ErrorAs(t, err, &e)
}
