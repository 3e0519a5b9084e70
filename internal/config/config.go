package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера миров
type Config struct {
	World    WorldConfig    `yaml:"world"`
	Storage  StorageConfig  `yaml:"storage"`
	EventBus EventBusConfig `yaml:"eventbus"`
	Server   ServerConfig   `yaml:"server"`
	Console  ConsoleConfig  `yaml:"console"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type WorldConfig struct {
	CatalogDir      string  `yaml:"catalog_dir"`
	StartWorld      string  `yaml:"start_world"`
	StartEntrance   string  `yaml:"start_entrance"`
	LocalPlayer     string  `yaml:"local_player"`
	Profile         string  `yaml:"profile"`
	LayerOffset     float64 `yaml:"layer_offset"`
	AutosaveSeconds int     `yaml:"autosave_seconds"`
	Authoritative   *bool   `yaml:"authoritative"` // nil = true
}

// AutosaveInterval возвращает период автосохранения (0 = выключено)
func (w *WorldConfig) AutosaveInterval() time.Duration {
	if w.AutosaveSeconds <= 0 {
		return 0
	}
	return time.Duration(w.AutosaveSeconds) * time.Second
}

// IsAuthoritative сообщает, может ли узел менять состояние миров
func (w *WorldConfig) IsAuthoritative() bool {
	return w.Authoritative == nil || *w.Authoritative
}

// StorageConfig выбирает хранилище сохранений и позиций наблюдателей.
// Backend: "file", "badger", "sqlite" или "redis".
type StorageConfig struct {
	Backend   string          `yaml:"backend"`
	DataDir   string          `yaml:"data_dir"`
	Redis     RedisConfig     `yaml:"redis"`
	Observers ObserversConfig `yaml:"observers"`
}

// GetDataDir возвращает каталог данных: config -> MEADOW_DATA -> "data"
func (s *StorageConfig) GetDataDir() string {
	return getStringWithEnvFallback(s.DataDir, "MEADOW_DATA", "data")
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// ObserversConfig хранилище позиций наблюдателей.
// Backend: "memory", "redis", "mariadb" или "postgres".
type ObserversConfig struct {
	Backend    string `yaml:"backend"`
	DSN        string `yaml:"dsn"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто = in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// GetRESTPort возвращает порт консоли с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8088)
}

// GetMetricsPort возвращает порт метрик шины событий
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GAME_METRICS_PORT", 2112)
}

// ConsoleConfig настройки отладочной консоли
type ConsoleConfig struct {
	Enabled     bool             `yaml:"enabled"`
	JWTSecret   string           `yaml:"jwt_secret"` // base64, >= 32 байт
	Operators   []OperatorConfig `yaml:"operators"`
	MongoURI    string           `yaml:"mongo_uri"` // пусто = операторы в памяти
	Telemetry   bool             `yaml:"telemetry"`
	ServiceName string           `yaml:"service_name"`
	OTLP        OTLPConfig       `yaml:"otlp"`
}

// OTLPConfig экспорт трасс; пустой endpoint = переменные OTEL_*
type OTLPConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type OperatorConfig struct {
	Username      string `yaml:"username"`
	PasswordHash  string `yaml:"password_hash"` // bcrypt
	Authoritative bool   `yaml:"authoritative"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"` // писать logs/<component>_<timestamp>.log
}

// Default возвращает конфигурацию для локального запуска
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.World.CatalogDir == "" {
		c.World.CatalogDir = "catalog"
	}
	if c.World.Profile == "" {
		c.World.Profile = "default"
	}
	if c.World.LocalPlayer == "" {
		c.World.LocalPlayer = "local"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Observers.Backend == "" {
		c.Storage.Observers.Backend = "memory"
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = "meadow:"
	}
	if c.EventBus.Stream == "" {
		c.EventBus.Stream = "MEADOW"
	}
	if c.EventBus.Retention <= 0 {
		c.EventBus.Retention = 24
	}
	if c.EventBus.Buffer <= 0 {
		c.EventBus.Buffer = 1024
	}
	if c.Console.ServiceName == "" {
		c.Console.ServiceName = "meadow-world"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate проверяет значения, которые нельзя исправить умолчаниями
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "badger", "sqlite", "redis":
	default:
		return fmt.Errorf("storage.backend: неизвестное хранилище %q", c.Storage.Backend)
	}
	switch c.Storage.Observers.Backend {
	case "memory", "redis":
	case "mariadb", "postgres":
		if c.Storage.Observers.DSN == "" {
			return fmt.Errorf("storage.observers.dsn обязателен для %s", c.Storage.Observers.Backend)
		}
	default:
		return fmt.Errorf("storage.observers.backend: неизвестное хранилище %q", c.Storage.Observers.Backend)
	}
	if c.World.LayerOffset < 0 {
		return fmt.Errorf("world.layer_offset не может быть отрицательным")
	}
	if r := c.Console.OTLP.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("console.otlp.sample_ratio должен быть в [0, 1], получено %v", r)
	}
	return nil
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

func getStringWithEnvFallback(value, envVar, def string) string {
	if value != "" {
		return value
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return def
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV GAME_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}
