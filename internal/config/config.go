package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/valeevte/OfferBooth/internal/database"
)

type Config struct {
	Env string `yaml:"env"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver     string `yaml:"driver"` // postgres|sqlite
		User       string `yaml:"user"`
		Password   string `yaml:"password"`
		Host       string `yaml:"host"`
		Port       string `yaml:"port"`
		Name       string `yaml:"name"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	Offers struct {
		BaseURL           string  `yaml:"base_url"`
		RefreshToken      string  `yaml:"refresh_token"`
		AccessToken       string  `yaml:"access_token"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"offers"`

	Scheduler struct {
		SyncIntervalSeconds    int `yaml:"sync_interval_seconds"`
		HistoryIntervalSeconds int `yaml:"history_interval_seconds"`
		MaxPriceRecords        int `yaml:"max_price_records"`
	} `yaml:"scheduler"`

	// Warnings collects values that were ignored while loading, so they can be
	// logged once a logger exists.
	Warnings []string `yaml:"-"`
}

// Load reads .env (if present), then the yaml file at path (if present), then
// environment overrides, then defaults. An empty path skips the yaml file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Env, "ENVIRONMENT")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Server.Port, "PORT")

	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SQLitePath, "SQLITE_PATH")

	setString(&c.Offers.BaseURL, "OFFERS_BASEURL")
	setString(&c.Offers.RefreshToken, "OFFERS_REFRESH_TOKEN")
	setString(&c.Offers.AccessToken, "OFFERS_ACCESS_TOKEN")
	c.setInt(&c.Offers.TimeoutSeconds, "OFFERS_TIMEOUT_SECONDS")
	if v := os.Getenv("OFFERS_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("OFFERS_RPS=%q is not a number, ignored", v))
		} else {
			c.Offers.RequestsPerSecond = f
		}
	}

	c.setInt(&c.Scheduler.SyncIntervalSeconds, "OFFERS_SYNC_INTERVAL_SECONDS")
	c.setInt(&c.Scheduler.HistoryIntervalSeconds, "PRICE_HISTORY_INTERVAL_SECONDS")
	c.setInt(&c.Scheduler.MaxPriceRecords, "MAX_PRICE_RECORDS")
}

func (c *Config) applyDefaults() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = database.DriverPostgres
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "instance/booth.sqlite"
	}

	if c.Offers.TimeoutSeconds <= 0 {
		c.Offers.TimeoutSeconds = 10
	}
	if c.Offers.RequestsPerSecond < 0 {
		c.Offers.RequestsPerSecond = 0
	}

	if c.Scheduler.SyncIntervalSeconds <= 0 {
		c.Scheduler.SyncIntervalSeconds = 60
	}
	if c.Scheduler.HistoryIntervalSeconds <= 0 {
		c.Scheduler.HistoryIntervalSeconds = 300
	}
	if c.Scheduler.MaxPriceRecords <= 0 {
		c.Scheduler.MaxPriceRecords = 100
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case database.DriverPostgres, database.DriverSQLite:
	default:
		return fmt.Errorf("unknown database.driver=%q (expected postgres|sqlite)", c.Database.Driver)
	}
	return nil
}

func (c *Config) DB() database.DBConfig {
	return database.DBConfig{
		Driver:     c.Database.Driver,
		User:       c.Database.User,
		Password:   c.Database.Password,
		Host:       c.Database.Host,
		Port:       c.Database.Port,
		DBName:     c.Database.Name,
		SQLitePath: c.Database.SQLitePath,
	}
}

func (c *Config) OffersTimeout() time.Duration {
	return time.Duration(c.Offers.TimeoutSeconds) * time.Second
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s=%q is not an integer, using default", key, v))
		return
	}
	*dst = n
}
