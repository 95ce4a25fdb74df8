package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	log.WithComponent("engine").WithError(errors.New("crc check failed")).Debug("decode failed",
		String("channel", "xcch"), Int("n_errors", 3), Bool("facch", false), Float64("ber", 0.25))
	log.Sync()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "xcch", entry["channel"])
	assert.Equal(t, float64(3), entry["n_errors"])
	assert.Equal(t, 0.25, entry["ber"])
	assert.Equal(t, "crc check failed", entry["error"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)
	log.Info("hidden")
	log.Sync()
	assert.Zero(t, buf.Len())
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
	_, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestFileOutput(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "codec.log")
	log, err := New(Config{Level: "info", Format: "console", File: file, MaxSize: 1, Output: &buf})
	require.NoError(t, err)
	log.WithFields(map[string]interface{}{"scheme": "MCS-9"}).Info("selftest done")
	log.Sync()
	assert.FileExists(t, file)
	assert.Contains(t, buf.String(), "MCS-9")
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().WithComponent("x").Error("ignored", Any("k", 1)) })
}
