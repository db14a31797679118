package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":45454", cfg.GrpcListenAddress)
	assert.Equal(t, ":9090", cfg.MetricsListenAddress)
	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 20*time.Second, cfg.RecoveryPollBound)
	assert.False(t, cfg.RestoreFileEnabled)
}

func TestLoadWithNoConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default().GrpcListenAddress, cfg.GrpcListenAddress)
}

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
grpcListenAddress: ":6000"
metricsListenAddress: ":9091"
defaultTimeout: 45s
recoveryPollBound: 20s
scriptTimeout: 15s
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.GrpcListenAddress)
	assert.Equal(t, ":9091", cfg.MetricsListenAddress)
	assert.Equal(t, 45*time.Second, cfg.DefaultTimeout)
	// Untouched field keeps its Default() value.
	assert.Equal(t, "/var/lib/odc/restore.yaml", cfg.RestoreFilePath)
}

func TestLoadDecodesRequestTriggersViaPluginMapHook(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
grpcListenAddress: ":45454"
metricsListenAddress: ":9090"
defaultTimeout: 30s
recoveryPollBound: 20s
scriptTimeout: 30s
requestTriggers:
  - "configure:/bin/notify.sh configure"
  - "reset:/bin/notify.sh reset"
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/bin/notify.sh configure", cfg.RequestTriggers["configure"])
	assert.Equal(t, "/bin/notify.sh reset", cfg.RequestTriggers["reset"])
}

func TestLoadFailsValidationWhenRequiredFieldMissing(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
grpcListenAddress: ""
metricsListenAddress: ":9090"
defaultTimeout: 30s
recoveryPollBound: 20s
scriptTimeout: 30s
`)

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestBindFlagsRegistersConfigFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	p := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", "/etc/odc"}))
	assert.Equal(t, "/etc/odc", *p)
}
