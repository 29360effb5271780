package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSONWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf})

	logger.Info("Audit completed", "record_id", "abc", "audit_type", "SECTION_BREAKDOWN")
	logger.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "Audit completed", line["msg"])
	require.Equal(t, "abc", line["record_id"])
	require.NotContains(t, buf.String(), "hidden")
}

func TestNewDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf, Debug: true, Format: FormatJSON})

	logger.Debug("visible")
	require.Contains(t, buf.String(), "visible")
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf, Format: FormatText})

	logger.Info("Transcript accepted", "record_id", "abc")
	require.Contains(t, buf.String(), "Transcript accepted")
	require.Contains(t, buf.String(), "record_id=abc")
}
