package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogLogger(t *testing.T) {
	require := require.New(t)
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)
	require.Equal(InfoLevel, l.Level())

	l.Debug("hidden")
	require.Zero(buf.Len())

	l.With("device", "/dev/ttyUSB0").Info("line received", "line", "Gas:n(420)")

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("line received", rec["msg"])
	require.Equal("/dev/ttyUSB0", rec["device"])
	require.Equal("Gas:n(420)", rec["line"])
	require.Contains(rec, "ts")

	buf.Reset()
	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, l.Level())
	l.Debug("visible")
	require.Contains(buf.String(), "visible")
}

func TestSetDefault(t *testing.T) {
	require := require.New(t)

	prev := GetLogger()
	defer SetDefault(prev)

	m := NewPermissiveMockLogger()
	SetDefault(m)
	SetDefault(nil)
	require.Same(m, GetLogger())

	Info("hello", "k", 1)
	m.AssertCalled(t, "Info", "hello", []any{"k", 1})
}
