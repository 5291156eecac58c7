package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitAndLevelString(t *testing.T) {
	defer Init("info")
	Init("debug")
	require.Equal(t, "debug", LevelString())
	Init("WARN")
	require.Equal(t, "warn", LevelString())
	Init("Error")
	require.Equal(t, "error", LevelString())
	Init("nonsense")
	require.Equal(t, "info", LevelString(), "unknown input falls back to info")
}

func TestLevelFilteringAndPrintln(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	defer Init("info")

	Init("warn")
	Debugf("debug-msg")
	Infof("info-msg")
	Warnf("warn-msg %d", 1)
	Errorf("error-msg")

	out := buf.String()
	require.NotContains(t, out, "debug-msg")
	require.NotContains(t, out, "info-msg")
	require.Contains(t, out, "warn-msg 1")
	require.Contains(t, out, "WARN")
	require.Contains(t, out, "error-msg")

	buf.Reset()
	Println("hello")
	require.NotContains(t, buf.String(), "hello", "Println maps to info and is suppressed at warn")

	Init("info")
	buf.Reset()
	Println("hello")
	require.Contains(t, buf.String(), "hello")
}

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Infow("content updated", "file", "site.json", "operation", "append")
	require.Contains(t, buf.String(), "content updated")
	require.Contains(t, buf.String(), `"file": "site.json"`)
}
