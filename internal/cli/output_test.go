package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stigc/internal/diag"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(map[string]string{"result": "success"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("E001", "compilation failed", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.Equal(t, "compilation failed", resp.Error.Message)
}

func TestOutputFormatter_Report(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Report([]int{1, 2}, &CLIError{Code: ErrCodeTestFailed, Message: "1 failed"}))
	var resp struct {
		Status string    `json:"status"`
		Data   []int     `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, []int{1, 2}, resp.Data)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)

	buf.Reset()
	require.NoError(t, formatter.Report("done", nil))
	var ok CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ok))
	assert.Equal(t, "ok", ok.Status)
	assert.Nil(t, ok.Error)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("E005", "path not found", "x.yaml"))
	assert.Equal(t, "Error [E005]: path not found\nDetails: x.yaml\n", buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut}

	formatter.VerboseLog("hidden")
	assert.Empty(t, errOut.String())

	formatter.Verbose = true
	formatter.VerboseLog("found %d", 3)
	assert.Equal(t, "found 3\n", errOut.String())
	assert.Empty(t, out.String(), "verbose logs never corrupt JSON output")
}

func TestOutputFormatter_Diagnostics(t *testing.T) {
	diags := []Diagnostic{
		{Code: "E210", Message: "missing is not defined", File: "a.yaml", Line: 4, Col: 7},
		{Code: "E001", Message: "boom"},
	}

	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, formatter.Diagnostics("Check failed", diags))
	assert.Equal(t, "✗ Check failed\n\na.yaml:4:7\n  E210: missing is not defined\n\n  E001: boom\n\n", buf.String())

	buf.Reset()
	formatter.Format = "json"
	require.NoError(t, formatter.Diagnostics("Check failed", diags))
	var resp struct {
		Status string       `json:"status"`
		Data   []Diagnostic `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, diags, resp.Data)
	assert.Equal(t, "E210", resp.Error.Code)
}

func TestDiagnostics(t *testing.T) {
	var list diag.List
	list.Add(diag.Errorf(diag.KindName, diag.ErrUnresolved, diag.At("b.yaml", 9, 3), "late"))
	list.Add(diag.Errorf(diag.KindBinding, diag.ErrThatOutside, diag.At("b.yaml", 2, 5), "early"))

	got := Diagnostics(fmt.Errorf("compile: %w", list.Err()))
	require.Len(t, got, 2)
	assert.Equal(t, Diagnostic{Code: "E201", Kind: "binding", Message: "early", File: "b.yaml", Line: 2, Col: 5}, got[0])
	assert.Equal(t, "b.yaml:9:3", got[1].Position())

	got = Diagnostics(&diag.InternalError{Message: "bad state"})
	assert.Equal(t, ErrCodeInternal, got[0].Code)

	got = Diagnostics(&LoadError{Code: ErrCodeNotFound, Message: "path not found", Path: "x"})
	assert.Equal(t, "x", got[0].Position())

	got = Diagnostics(errors.New("plain"))
	assert.Equal(t, []Diagnostic{{Code: ErrCodeGeneric, Message: "plain"}}, got)
}
