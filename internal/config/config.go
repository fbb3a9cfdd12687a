package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"stationcast/internal/labels"
	"stationcast/internal/learn"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var (
	instance *Config
	once     sync.Once
)

// Defaults applied to keys left out of the file
const (
	DefaultDriver            = "sqlite3"
	DefaultDSN               = "file:station.db?_busy_timeout=5000"
	DefaultWindowHours       = 12.0
	DefaultMinStationSamples = 50
	DefaultMinGroupSamples   = 200
	DefaultArtifactsDir      = "artifacts"
	DefaultServerAddr        = ":8080"
	DefaultStream            = "stationcast:predictions"
)

type Config struct {
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Horizons []labels.Horizon `yaml:"horizons"`
	Training struct {
		// WindowHours <= 0 loads the full history.
		WindowHours       *float64 `yaml:"window_hours"`
		MinStationSamples int      `yaml:"min_station_samples"`
		MinGroupSamples   int      `yaml:"min_group_samples"`
		ArtifactsDir      string   `yaml:"artifacts_dir"`
	} `yaml:"training"`
	Learner    learn.Params `yaml:"learner"`
	Prediction struct {
		OutputPath string `yaml:"output_path"`
		ModelPath  string `yaml:"model_path"`
	} `yaml:"prediction"`
	Redis  RedisConfig `yaml:"redis"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// Load reads the YAML file at configPath once per process, applies defaults
// and environment overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = &Config{}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
			return
		}

		if parseErr := yaml.Unmarshal(data, instance); parseErr != nil {
			err = fmt.Errorf("failed to parse config: %w", parseErr)
			return
		}

		instance.applyDefaults()
		instance.applyEnv()

		if validateErr := instance.validate(); validateErr != nil {
			err = validateErr
			return
		}
	})

	return instance, err
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.DSN == "" {
		c.Database.DSN = DefaultDSN
	}
	if len(c.Horizons) == 0 {
		c.Horizons = labels.Canonical().All()
	}
	if c.Training.WindowHours == nil {
		w := DefaultWindowHours
		c.Training.WindowHours = &w
	}
	if c.Training.MinStationSamples == 0 {
		c.Training.MinStationSamples = DefaultMinStationSamples
	}
	if c.Training.MinGroupSamples == 0 {
		c.Training.MinGroupSamples = DefaultMinGroupSamples
	}
	if c.Training.ArtifactsDir == "" {
		c.Training.ArtifactsDir = DefaultArtifactsDir
	}
	if c.Prediction.ModelPath == "" {
		c.Prediction.ModelPath = filepath.Join(c.Training.ArtifactsDir, "model.json")
	}
	if c.Prediction.OutputPath == "" {
		c.Prediction.OutputPath = filepath.Join(c.Training.ArtifactsDir, "prediction.json")
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = DefaultStream
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = GetDatabaseDSN(c.Database.DSN)
	c.Redis = GetRedisConfig(c.Redis)
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite3", "mysql":
	default:
		return fmt.Errorf("%w: database.driver must be sqlite3 or mysql, got %q", ErrInvalidConfig, c.Database.Driver)
	}
	if _, err := labels.NewHorizons(c.Horizons...); err != nil {
		return fmt.Errorf("%w: horizons: %v", ErrInvalidConfig, err)
	}
	if c.Training.MinStationSamples < 0 || c.Training.MinGroupSamples < 0 {
		return fmt.Errorf("%w: training sample thresholds cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// HorizonSet returns the configured horizons as a validated ordered set.
func (c *Config) HorizonSet() labels.Horizons {
	hs, err := labels.NewHorizons(c.Horizons...)
	if err != nil {
		return labels.Canonical()
	}
	return hs
}

// WindowHours returns the loading window; <= 0 means the full history.
func (c *Config) WindowHours() float64 {
	if c.Training.WindowHours == nil {
		return DefaultWindowHours
	}
	return *c.Training.WindowHours
}

// BundlePath is where training writes the model bundle.
func (c *Config) BundlePath() string {
	return filepath.Join(c.Training.ArtifactsDir, "model.json")
}
