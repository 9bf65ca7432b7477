package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_JSONAddsServiceAndEnv(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{ServiceName: "payment-core", Env: "docker", Level: "debug", Output: &buf})
	require.NoError(t, err)

	log.Debug("hello")
	Sync(log)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "hello", entry["msg"])
	require.Equal(t, "payment-core", entry["service"])
	require.Equal(t, "docker", entry["env"])
	require.Equal(t, "debug", entry["level"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{ServiceName: "payment-core", Env: "docker", Level: "warn", Output: &buf})
	require.NoError(t, err)

	log.Info("dropped")
	require.Zero(t, buf.Len())
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	require.Error(t, err)

	_, err = New(Config{Format: "xml"})
	require.Error(t, err)
}
