package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoursync/internal/config"
	"hoursync/internal/domain"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8081", cfg.Game.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Polling.Cycle)
	assert.Equal(t, 50*time.Millisecond, cfg.Polling.MinDelay)
	assert.Equal(t, []string{"~/hand", "~/portage"}, cfg.Visibility.AlwaysVisible)
	assert.True(t, cfg.Journal.Enabled)
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
game:
  base_url: http://127.0.0.1:9000
sync:
  payload_types: [ElementStack, Situation]
webhooks:
  - id: discord
    url: http://127.0.0.1:9999/hook
    events: [token.created]
`))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.Game.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Game.Timeout)
	assert.Equal(t, []domain.PayloadType{domain.PayloadElementStack, domain.PayloadSituation}, cfg.PayloadTypes())
	require.Len(t, cfg.Webhooks, 1)
	assert.True(t, cfg.Webhooks[0].IsEnabled())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad url":        "game:\n  base_url: localhost:8081\n",
		"zero cycle":     "polling:\n  cycle: 0s\n",
		"min over cycle": "polling:\n  cycle: 1s\n  min_delay: 2s\n",
		"unknown type":   "sync:\n  payload_types: [Mystery]\n",
		"duplicate hook": "webhooks:\n  - {id: a, url: http://x}\n  - {id: a, url: http://y}\n",
		"empty prefix":   "visibility:\n  always_visible: [\"\"]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "hoursync.yml"), []byte("polling:\n  cycle: 4s\n"), 0o644))
	cfg, err = config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, cfg.Polling.Cycle)
	assert.Equal(t, filepath.Join(dir, "hoursync.yml"), config.Path(dir))
}
