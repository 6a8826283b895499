package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockEnv(t *testing.T) {
	t.Setenv("TRAVEL_PROVIDER", "mock")
	t.Setenv("TRAVEL_SESSION_STORE", "sqlite")
	t.Setenv("TRAVEL_SQLITE_PATH", filepath.Join(t.TempDir(), "travel.db"))
	t.Setenv("TRAVEL_LOG_LEVEL", "error")
}

func TestChatThenExport(t *testing.T) {
	mockEnv(t)

	var out bytes.Buffer
	err := run([]string{"chat", "-session", "viaje-1"}, strings.NewReader("Hola\n\nsalir\n"), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Sesión viaje-1.")
	assert.Contains(t, out.String(), "[greeting_agent] Mock response to: Hola\n")

	out.Reset()
	err = run([]string{"export", "-session", "viaje-1", "-format", "yaml"}, nil, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "pais: \"\"")

	target := filepath.Join(t.TempDir(), "viaje.md")
	require.NoError(t, run([]string{"export", "-session", "viaje-1", "-out", target}, nil, &out))
	assert.FileExists(t, target)
}

func TestRunErrors(t *testing.T) {
	mockEnv(t)

	err := run([]string{"book"}, nil, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")

	err = run([]string{"export"}, nil, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-session is required")

	err = run([]string{"export", "-session", "nope"}, nil, &bytes.Buffer{})
	assert.Error(t, err)
}
