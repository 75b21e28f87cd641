package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "detach.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_FillsDefaults(t *testing.T) {
	path := writeConfig(t, `
voxel:
  chunk_size: 16
placement:
  step_fraction: 0.25
eventbus:
  url: nats://localhost:4222
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Voxel.ChunkSize)
	assert.Equal(t, 1.0, cfg.Voxel.CubeSize)
	assert.Equal(t, 0.25, cfg.Placement.StepFraction)
	assert.Equal(t, 0.1, cfg.Placement.InitialOffset)
	assert.Equal(t, 4.0, cfg.Placement.MaxOffsetCubes)
	assert.Equal(t, "nats://localhost:4222", cfg.EventBus.URL)
	assert.Equal(t, "DETACHED", cfg.EventBus.Stream)
	assert.Equal(t, "surface", cfg.Mesh.Kind)
}

func TestLoad_EnvFallback(t *testing.T) {
	path := writeConfig(t, "storage:\n  in_memory: true\n")
	t.Setenv("DETACH_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Storage.InMemory)
}

func TestLoad_NoConfigGivesDefaults(t *testing.T) {
	t.Setenv("DETACH_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Voxel.ChunkSize)
	assert.Equal(t, "voxel-detach", cfg.Telemetry.ServiceName)
	assert.Equal(t, "data", cfg.Storage.Path, "хранилище само добавляет каталог matrices")
	assert.Equal(t, int64(128*128*128), cfg.Voxel.MaxVolume)
	assert.False(t, cfg.Telemetry.Insecure)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "нет.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "voxel: [1, 2"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "placement:\n  initial_offset: 5\n  max_offset_cubes: 1\n"))
	assert.Error(t, err, "предел меньше начального отступа")
}

func TestLoad_RejectsNonFiniteAndTinyValues(t *testing.T) {
	cases := map[string]string{
		"cube nan":        "voxel:\n  cube_size: .nan\n",
		"cube inf":        "voxel:\n  cube_size: .inf\n",
		"cube negative":   "voxel:\n  cube_size: -1\n",
		"chunk negative":  "voxel:\n  chunk_size: -4\n",
		"volume negative": "voxel:\n  max_volume: -1\n",
		"step nan":        "placement:\n  step_fraction: .nan\n",
		"step tiny":       "placement:\n  step_fraction: 0.000000001\n",
		"max offset inf":  "placement:\n  max_offset_cubes: .inf\n",
		"initial nan":     "placement:\n  initial_offset: .nan\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	cfg, err := Load(writeConfig(t, "placement:\n  step_fraction: 0.015625\n"))
	require.NoError(t, err, "шаг 1/64 допустим")
	assert.Equal(t, 0.015625, cfg.Placement.StepFraction)
}

func TestPorts_EnvFallback(t *testing.T) {
	s := ServerConfig{}
	t.Setenv("DETACH_REST_PORT", "9090")
	assert.Equal(t, 9090, s.GetRESTPort())
	assert.Equal(t, 2112, s.GetMetricsPort())

	s.RESTPort = 7000
	assert.Equal(t, 7000, s.GetRESTPort(), "значение из конфига важнее env")
}

func TestLoad_SampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "detach.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Voxel.ChunkSize)
	assert.Equal(t, "stone", cfg.Mesh.Material)
	assert.Equal(t, "debug", cfg.Logging.Components["storage"])
	assert.Equal(t, 2112, cfg.Server.GetMetricsPort())
	assert.False(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.Telemetry.Insecure)
	assert.Equal(t, "data", cfg.Storage.Path)
	assert.Equal(t, int64(2097152), cfg.Voxel.MaxVolume)
}

func TestLoad_TelemetryInsecure(t *testing.T) {
	cfg, err := Load(writeConfig(t, "telemetry:\n  enabled: true\n  endpoint: otel-collector:4318\n  insecure: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Telemetry.Insecure)
	assert.Equal(t, "otel-collector:4318", cfg.Telemetry.Endpoint)
}
