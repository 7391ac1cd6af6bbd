package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile = ""

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	output, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "migrate", "version"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	_, err := execute(t, "--config=/etc/atelier.yaml", "--help")
	require.NoError(t, err)
	assert.Equal(t, "/etc/atelier.yaml", configFile)
}

func TestVersionCommand(t *testing.T) {
	output, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, output, "0.0.0")
}

func TestServeCommand_Flags(t *testing.T) {
	cmd := NewServeCmd()
	for _, name := range []string{"host", "port", "metrics-port", "backend", "database-url", "auto-migrate"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "serve missing --%s", name)
	}
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	t.Setenv("ATELIER_SUPABASE_URL", "")

	_, err := execute(t, "serve", "--backend", "firebase")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestMigrateCommand_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("ATELIER_DATABASE_URL", "")

	_, err := execute(t, "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")
}

func TestMigrateDown_RejectsNonPositiveSteps(t *testing.T) {
	_, err := execute(t, "migrate", "down", "--steps", "0", "--database-url", "postgres://localhost/atelier")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--steps must be at least 1")
}
