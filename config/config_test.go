package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "blueapplet"), os.ModePerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blueapplet", configFile), []byte(`{
		log-level: debug
		reply-timeout: 30s
		recent-connections: 3
		plugins: {
			PPPSupport: true
			NMDUNSupport: false
		}
	}`), os.ModePerm))

	cfg := NewConfig()
	require.NoError(t, cfg.Load(koanf.New("."), nil))
	require.NoError(t, cfg.ValidateValues())

	assert.Equal(t, filepath.Join(dir, "blueapplet"), cfg.path)
	assert.Equal(t, zerolog.DebugLevel, cfg.Values.Level)
	assert.Equal(t, 30*time.Second, cfg.Values.Timeout)
	assert.Equal(t, 3, cfg.Values.RecentConnections)
	assert.Equal(t, map[string]bool{"PPPSupport": true, "NMDUNSupport": false}, cfg.Values.Plugins)
	assert.Equal(t, DefaultGsmNumber, cfg.Values.GsmNumber)
	assert.Equal(t, DefaultPPPCommand, cfg.Values.PPPCommand)
}

func TestLoadCreatesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	k := koanf.New(".")
	cfg := NewConfig()
	require.NoError(t, cfg.Load(k, nil))
	require.NoError(t, cfg.ValidateValues())

	assert.FileExists(t, filepath.Join(dir, "blueapplet", configFile))
	assert.Equal(t, DefaultReplyTimeout, cfg.Values.Timeout)
	assert.Equal(t, DefaultRecentConnections, cfg.Values.RecentConnections)
	assert.Equal(t, zerolog.InfoLevel, cfg.Values.Level)

	require.NoError(t, k.Set("gsm-apn", "internet"))
	require.NoError(t, cfg.GenerateAndSave(k))

	data, err := os.ReadFile(filepath.Join(dir, "blueapplet", configFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "internet")
}

func TestValidateValues(t *testing.T) {
	tests := []struct {
		name   string
		values Values
	}{
		{"invalid log level", Values{LogLevel: "loud"}},
		{"invalid reply timeout", Values{ReplyTimeout: "soon"}},
		{"negative reply timeout", Values{ReplyTimeout: "-1s"}},
		{"empty plugin name", Values{Plugins: map[string]bool{" ": true}}},
		{"quoted gsm number", Values{GsmNumber: "*99'#"}},
		{"negative recent connections", Values{RecentConnections: -1}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Error(t, test.values.validateValues())
		})
	}
}
