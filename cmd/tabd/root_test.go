package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRootCmdRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["apply"])
	require.True(t, names["serve"])
	require.True(t, names["inspect"])
}

func TestLoadConfigOrDieReturnsUsableLogger(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, log := loadConfigOrDie()
	require.NotNil(t, cfg)
	require.NotNil(t, log)
}
