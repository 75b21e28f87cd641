package config

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
// Нулевые поля заменяются значениями по умолчанию при загрузке.
type Config struct {
	Voxel     VoxelConfig     `yaml:"voxel"`
	Placement PlacementConfig `yaml:"placement"`
	Mesh      MeshConfig      `yaml:"mesh"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type VoxelConfig struct {
	ChunkSize int     `yaml:"chunk_size"`
	CubeSize  float64 `yaml:"cube_size"`
	// MaxVolume предел вокселей в боксе генерации, защищает REST создание матриц
	MaxVolume int64   `yaml:"max_volume"`
}

type PlacementConfig struct {
	InitialOffset  float64 `yaml:"initial_offset"`
	StepFraction   float64 `yaml:"step_fraction"`
	MaxOffsetCubes float64 `yaml:"max_offset_cubes"`
}

type MeshConfig struct {
	Kind     string `yaml:"kind"` // surface | wire
	Material string `yaml:"material"`
}

type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // Пусто: in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"` // host:port OTLP HTTP, пусто: localhost:4318
	Insecure    bool   `yaml:"insecure"` // Обычный HTTP к коллектору без TLS
}

type LoggingConfig struct {
	Component    string `yaml:"component"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
	Dir          string `yaml:"dir"`
	// Components уровень консоли для отдельных компонентов: {storage: debug}
	Components map[string]string `yaml:"components"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Voxel.ChunkSize == 0 {
		c.Voxel.ChunkSize = 32
	}
	if c.Voxel.CubeSize == 0 {
		c.Voxel.CubeSize = 1
	}
	if c.Voxel.MaxVolume == 0 {
		c.Voxel.MaxVolume = 128 * 128 * 128
	}
	if c.Placement.InitialOffset == 0 {
		c.Placement.InitialOffset = 0.1
	}
	if c.Placement.StepFraction == 0 {
		c.Placement.StepFraction = 0.125
	}
	if c.Placement.MaxOffsetCubes == 0 {
		c.Placement.MaxOffsetCubes = 4
	}
	if c.Mesh.Kind == "" {
		c.Mesh.Kind = "surface"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data"
	}
	if c.EventBus.Stream == "" {
		c.EventBus.Stream = "DETACHED"
	}
	if c.EventBus.Retention == 0 {
		c.EventBus.Retention = 24
	}
	if c.EventBus.Buffer == 0 {
		c.EventBus.Buffer = 1024
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "voxel-detach"
	}
	if c.Logging.Component == "" {
		c.Logging.Component = "detach"
	}
	if c.Logging.ConsoleLevel == "" {
		c.Logging.ConsoleLevel = "info"
	}
	if c.Logging.FileLevel == "" {
		c.Logging.FileLevel = "debug"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
}

// MinStepFraction наименьший шаг обхода: не больше 4096 шагов на куб
const MinStepFraction = 1.0 / 4096

// Validate проверяет значения, которые нельзя исправить дефолтами
func (c *Config) Validate() error {
	if c.Voxel.ChunkSize <= 0 || !positive(c.Voxel.CubeSize) {
		return fmt.Errorf("voxel: размеры должны быть положительными (chunk=%d, cube=%v)", c.Voxel.ChunkSize, c.Voxel.CubeSize)
	}
	if c.Voxel.MaxVolume < 0 {
		return fmt.Errorf("voxel: отрицательный max_volume %d", c.Voxel.MaxVolume)
	}
	if !positive(c.Placement.StepFraction) || c.Placement.StepFraction < MinStepFraction {
		return fmt.Errorf("placement: шаг %v вне допустимого диапазона (>= %v)", c.Placement.StepFraction, MinStepFraction)
	}
	if !finite(c.Placement.InitialOffset) || c.Placement.InitialOffset < 0 || !finite(c.Placement.MaxOffsetCubes) {
		return fmt.Errorf("placement: неверные отступы initial=%v max=%v", c.Placement.InitialOffset, c.Placement.MaxOffsetCubes)
	}
	if c.Placement.MaxOffsetCubes < c.Placement.InitialOffset {
		return fmt.Errorf("placement: max_offset_cubes %v меньше initial_offset %v", c.Placement.MaxOffsetCubes, c.Placement.InitialOffset)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func positive(v float64) bool { return finite(v) && v > 0 }

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "DETACH_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "DETACH_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV DETACH_CONFIG, иначе возвращает дефолты.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("DETACH_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
