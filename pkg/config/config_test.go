package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, time.Second, cfg.HeartbeatInterval)
	require.Equal(t, 0.1, cfg.RTTSmoothingFactor)
	require.Equal(t, 508, cfg.MTU)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netrelay.yaml")
	contents := "heartbeat_interval: 2s\nmtu: 1200\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, cfg.HeartbeatInterval)
	require.Equal(t, 1200, cfg.MTU)
	// Unspecified fields keep their default.
	require.Equal(t, 0.1, cfg.RTTSmoothingFactor)
}

func TestValidateRejectsOutOfRangeSmoothingFactor(t *testing.T) {
	cfg := Defaults()
	cfg.RTTSmoothingFactor = 1.5
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveTimers(t *testing.T) {
	cfg := Defaults()
	cfg.HeartbeatInterval = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUndersizedMTU(t *testing.T) {
	cfg := Defaults()
	cfg.MTU = 10
	require.Error(t, cfg.Validate())
}
