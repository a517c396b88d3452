//go:build unit || !integration

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
	"github.com/bacalhau-project/contractnet/pkg/config"
	"github.com/bacalhau-project/contractnet/pkg/config/types"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg, err := config.New()
	require.NoError(t, err)

	var actual types.ContractNet
	require.NoError(t, cfg.Unmarshal(&actual))
	assert.Equal(t, config.Default, actual)
	assert.Equal(t, 3*time.Second, actual.Supervisor.Deadline.AsTimeDuration())
	assert.Equal(t, []string{"job_A", "job_B", "job_C", "job_D", "job_E"}, actual.Supervisor.JobTypes)
}

func TestConfigWithValueOverrides(t *testing.T) {
	cfg, err := config.New(config.WithValues(map[string]any{
		"bus.transport":       types.TransportInMemory,
		"supervisor.deadline": "500ms",
		"machine.id":          "machine_042",
	}))
	require.NoError(t, err)

	var actual types.ContractNet
	require.NoError(t, cfg.Unmarshal(&actual))
	assert.Equal(t, types.TransportInMemory, actual.Bus.Transport)
	assert.Equal(t, 500*time.Millisecond, actual.Supervisor.Deadline.AsTimeDuration())
	assert.Equal(t, "machine_042", actual.Machine.ID)
	assert.Equal(t, config.Default.Bus.Port, actual.Bus.Port)
}

func writeConfigFile(t *testing.T, dir, content string) string {
	path := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigurationPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
Bus:
  Port: 5000
  Address: 10.0.0.1
Supervisor:
  Deadline: 4s
  JobInterval: 20s
Machine:
  Capabilities: "job_A:5"
`)

	t.Setenv("CONTRACTNET_BUS_PORT", "6000")
	t.Setenv("CONTRACTNET_SUPERVISOR_JOBINTERVAL", "30s")

	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flagSet.Int("bus-port", config.DefaultBusPort, "")
	flagSet.Duration("deadline", 3*time.Second, "")
	require.NoError(t, flagSet.Parse([]string{"--bus-port=7000"}))

	actual, err := config.Load(dir, config.WithFlags(map[string]*pflag.Flag{
		"bus.port":            flagSet.Lookup("bus-port"),
		"supervisor.deadline": flagSet.Lookup("deadline"),
	}))
	require.NoError(t, err)

	assert.Equal(t, 7000, actual.Bus.Port, "flags override everything")
	assert.Equal(t, 30*time.Second, actual.Supervisor.JobInterval.AsTimeDuration(), "environment overrides the file")
	assert.Equal(t, 4*time.Second, actual.Supervisor.Deadline.AsTimeDuration(), "unset flags do not override the file")
	assert.Equal(t, "10.0.0.1", actual.Bus.Address)
	assert.Equal(t, "job_A:5", actual.Machine.Capabilities)
	assert.Equal(t, config.Default.Supervisor.ID, actual.Supervisor.ID, "defaults fill the rest")
}

func TestLoadWithoutConfigFile(t *testing.T) {
	actual, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, config.Default, actual)
}

func TestListsFromEnvironment(t *testing.T) {
	t.Setenv("CONTRACTNET_SUPERVISOR_JOBTYPES", "job_A,job_C")
	actual, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"job_A", "job_C"}, actual.Supervisor.JobTypes)
}

func TestInvalidConfiguration(t *testing.T) {
	for _, tc := range []struct {
		name   string
		values map[string]any
	}{
		{name: "unknown transport", values: map[string]any{"bus.transport": "mqtt"}},
		{name: "bad port", values: map[string]any{"bus.port": 70000}},
		{name: "bad duration", values: map[string]any{"bus.reconnectwait": "soon"}},
		{name: "bad peer", values: map[string]any{"bus.peers": []string{"not-a-multiaddr"}}},
		{name: "bad log level", values: map[string]any{"logging.level": "loud"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := config.New(config.WithValues(tc.values))
			require.NoError(t, err)

			var actual types.ContractNet
			err = cfg.Unmarshal(&actual)
			require.Error(t, err)
			assert.True(t, cnerrors.IsCode(err, cnerrors.ConfigurationError))
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := config.New(config.WithPaths(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
	assert.True(t, cnerrors.IsCode(err, cnerrors.ConfigurationError))
}

func TestRender(t *testing.T) {
	out, err := config.Render(config.Default)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Transport: nats")
	assert.Contains(t, string(out), "Deadline: 3s")

	// rendered configuration can be loaded back
	dir := t.TempDir()
	writeConfigFile(t, dir, string(out))
	actual, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.Default, actual)
}
