package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.Contains(t, names, "serve")
	require.Contains(t, names, "migrate")
	require.Contains(t, names, "seed")
}
