package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommandStructure(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tsfinder", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.Contains(t, cmd.Version, "dev")
}

func TestNewRootCommandSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"locate", "migrate", "config"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestNewRootCommandGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	pf := cmd.PersistentFlags()

	require.NotNil(t, pf.Lookup("config"))
	require.NotNil(t, pf.Lookup("log-level"))
	assert.Equal(t, "", pf.Lookup("config").DefValue)
}

func TestConfigValidateRunsFromEnv(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "validate"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "configuration valid")
	assert.Contains(t, out.String(), "xtb")
}

func TestLogLevelOverride(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--log-level", "debug", "config", "validate"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "configuration valid")
}
