package cmd

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	for _, state := range []string{"on", "YES", "y", "true"} {
		enabled, err := parseState(state)
		require.NoError(t, err)
		assert.True(t, enabled, state)
	}

	for _, state := range []string{"off", "No", "n", "false"} {
		enabled, err := parseState(state)
		require.NoError(t, err)
		assert.False(t, enabled, state)
	}

	_, err := parseState("maybe")
	assert.Error(t, err)
}

func TestServiceArg(t *testing.T) {
	assert.Equal(t, uuid.Nil.String(), serviceArg(""))
	assert.Equal(t, "00001116-0000-1000-8000-00805f9b34fb", serviceArg("00001116-0000-1000-8000-00805f9b34fb"))
}

func TestAppCommands(t *testing.T) {
	app := newApp()

	for _, name := range []string{"plugins", "set-plugin", "connect", "disconnect", "plugin-dialog"} {
		assert.NotNil(t, app.Command(name), name)
	}
}
