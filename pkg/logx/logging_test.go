package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFieldsInOrder(t *testing.T) {
	var buf bytes.Buffer
	log := FromZerolog(zerolog.New(&buf)).With(String("comp", "changelog"))

	log.Error("bad updates type", String("kind", "too_long"), Err(errors.New("boom")), String("comp", "override"))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "bad updates type", m["message"])
	assert.Equal(t, "override", m["comp"])
	assert.Equal(t, "too_long", m["kind"])
	assert.Equal(t, "boom", m["err"])
	assert.NotEmpty(t, m["caller"])
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var log Logger
	assert.True(t, log.IsZero())
	assert.NotPanics(t, func() { log.Info("dropped") })
	assert.False(t, Nop().IsZero())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug", zerolog.InfoLevel))
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" warning ", zerolog.InfoLevel))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("nonsense", zerolog.InfoLevel))
}

func TestServiceFileSinkAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })

	log.Debug("hidden")
	log.Info("visible", Int("n", 1))

	assert.False(t, log.Enabled(LevelDebug))
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	assert.True(t, log.Enabled(LevelDebug))
	log.Debug("now visible")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hidden")
	assert.Contains(t, string(b), `"message":"visible"`)
	assert.Contains(t, string(b), `"message":"now visible"`)
}
