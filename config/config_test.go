package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, "0.0.0.0:8080", cfg.Server.Address)

	require.Equal(t, 4*time.Hour, cfg.Notifier.CheckInterval)
	require.Equal(t, 10*time.Second, cfg.Notifier.SourceTimeout)
	require.Equal(t, time.Minute, cfg.Notifier.StartupDelay)
	require.Equal(t, time.Second, cfg.Notifier.InterUserDelay)
	require.Equal(t, 30, cfg.Notifier.RetentionDays)
	require.Equal(t, 10, cfg.Notifier.MaxPerMessage)
	require.Equal(t, "merge_all", cfg.Notifier.Policy)
	require.Equal(t, "IT", cfg.Notifier.DefaultCountry)

	require.Equal(t, 200*time.Millisecond, cfg.Ticketing.RequestSpacing)
	require.Equal(t, 730, cfg.Ticketing.WindowDays)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CONCERTBOT_NOTIFIER_RETENTION_DAYS", "7")
	t.Setenv("CONCERTBOT_TICKETING_API_KEY", "from-env")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7, cfg.Notifier.RetentionDays)
	require.Equal(t, "from-env", cfg.Ticketing.APIKey)
}
