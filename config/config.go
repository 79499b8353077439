// Package config loads config.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"organicscan/dataset"
	"organicscan/ml"
	"organicscan/training"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Models struct {
		Dir       string `yaml:"dir"`
		Watch     bool   `yaml:"watch"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"models"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log      Log      `yaml:"log"`
	Training Training `yaml:"training"`
}

type Log struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Training drives the offline generate and train commands.
type Training struct {
	SamplesPerCategory int     `yaml:"samples_per_category"`
	Seed               int64   `yaml:"seed"`
	NoiseStdDev        float64 `yaml:"noise_stddev"`
	ModelType          string  `yaml:"model_type"`
	MaxTreeDepth       int     `yaml:"max_tree_depth"`
	TestRatio          float64 `yaml:"test_ratio"`
}

func (t Training) Dataset() dataset.Config {
	return dataset.Config{
		SamplesPerCategory: t.SamplesPerCategory,
		Seed:               t.Seed,
		NoiseStdDev:        t.NoiseStdDev,
	}
}

func (t Training) Options() training.Options {
	return training.Options{
		ModelType:    t.ModelType,
		MaxTreeDepth: t.MaxTreeDepth,
		TestRatio:    t.TestRatio,
		Seed:         t.Seed,
	}
}

func Default() *Config {
	cfg := &Config{}
	cfg.Http.Port = 5000
	cfg.Http.Timeout = 30 * time.Second
	cfg.Http.AllowedOrigins = []string{"*"}
	cfg.Http.MaxBodyBytes = 1 << 20
	cfg.Models.Dir = "models"
	cfg.Models.Watch = true
	cfg.Models.CacheSize = 1024
	cfg.Database.Path = "data/organicscan.db"
	cfg.Log = Log{
		Level:      "info",
		Format:     "json",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
	data, opts := dataset.DefaultConfig(), training.DefaultOptions()
	cfg.Training = Training{
		SamplesPerCategory: data.SamplesPerCategory,
		Seed:               data.Seed,
		NoiseStdDev:        data.NoiseStdDev,
		ModelType:          opts.ModelType,
		MaxTreeDepth:       opts.MaxTreeDepth,
		TestRatio:          opts.TestRatio,
	}
	return cfg
}

// Find returns the config file to use: explicit if set, otherwise
// config.yaml in the working directory or its parent. It returns "" when
// none exists.
func Find(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, candidate := range []string{"config.yaml", filepath.Join("..", "config.yaml")} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Load overlays the file at path on the defaults, then the environment. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Http.Port = port
	}
	if v, ok := lookup("MODEL_PATH"); ok && v != "" {
		c.Models.Dir = v
	}
	if v, ok := lookup("DB_PATH"); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.Http.Port))
	}
	if c.Http.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	if c.Http.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("http.max_body_bytes must be positive"))
	}
	if c.Models.Dir == "" {
		errs = append(errs, errors.New("models.dir is required"))
	}
	if c.Models.CacheSize < 0 {
		errs = append(errs, errors.New("models.cache_size must not be negative"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or console", c.Log.Format))
	}
	if _, err := ml.NewModel(c.Training.ModelType, c.Training.MaxTreeDepth); err != nil {
		errs = append(errs, fmt.Errorf("training.model_type: %w", err))
	}
	if c.Training.SamplesPerCategory <= 0 {
		errs = append(errs, errors.New("training.samples_per_category must be positive"))
	}
	if c.Training.NoiseStdDev < 0 {
		errs = append(errs, errors.New("training.noise_stddev must not be negative"))
	}
	if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
		errs = append(errs, fmt.Errorf("training.test_ratio %v must be in (0,1)", c.Training.TestRatio))
	}
	return errors.Join(errs...)
}
