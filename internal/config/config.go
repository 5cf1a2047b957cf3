package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sakinah/internal/model"
	"sakinah/internal/streak"
	"sakinah/internal/task"
)

type Config struct {
	Version string `yaml:"version" mapstructure:"version"`

	// Timezone is an IANA name; calendar days are computed in it. "Local"
	// uses the host setting.
	Timezone string `yaml:"timezone" mapstructure:"timezone"`

	// Identity selects the remote backend when user_id is set.
	Identity model.Identity `yaml:"identity" mapstructure:"identity"`

	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Remote    RemoteConfig    `yaml:"remote" mapstructure:"remote"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Records   RecordsConfig   `yaml:"records" mapstructure:"records"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Streak    streak.Rules    `yaml:"streak" mapstructure:"streak"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`

	// Checklist seeds a new user's tasks.
	Checklist []task.Seed `yaml:"checklist" mapstructure:"checklist"`
}

type StorageConfig struct {
	// Path of the local sqlite database. "~" expands to the home directory.
	Path         string `yaml:"path" mapstructure:"path"`
	WriteTimeout string `yaml:"write_timeout" mapstructure:"write_timeout"`
}

type RemoteConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Timeout string `yaml:"timeout" mapstructure:"timeout"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

type RecordsConfig struct {
	Addr    string `yaml:"addr" mapstructure:"addr"`
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
	// Tokens maps user id to bearer token.
	Tokens map[string]string `yaml:"tokens" mapstructure:"tokens"`
}

type SchedulerConfig struct {
	CheckInterval  string `yaml:"check_interval" mapstructure:"check_interval"`
	MaxCatchUpDays int    `yaml:"max_catch_up_days" mapstructure:"max_catch_up_days"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

func Default() *Config {
	return &Config{
		Version:  "1",
		Timezone: "Local",
		Storage: StorageConfig{
			Path:         "~/.sakinah/sakinah.db",
			WriteTimeout: "15s",
		},
		Remote: RemoteConfig{
			Timeout: "10s",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8420",
		},
		Records: RecordsConfig{
			Addr:    "127.0.0.1:8421",
			DataDir: "~/.sakinah/records",
			Tokens:  map[string]string{},
		},
		Scheduler: SchedulerConfig{
			CheckInterval:  "1m",
			MaxCatchUpDays: 30,
		},
		Streak: streak.DefaultRules(),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Checklist: append([]task.Seed(nil), task.DefaultSeed...),
	}
}

// ApplyDefaults fills fields left empty by a partial config file.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.Storage.Path == "" {
		c.Storage.Path = d.Storage.Path
	}
	if c.Storage.WriteTimeout == "" {
		c.Storage.WriteTimeout = d.Storage.WriteTimeout
	}
	if c.Remote.Timeout == "" {
		c.Remote.Timeout = d.Remote.Timeout
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Records.Addr == "" {
		c.Records.Addr = d.Records.Addr
	}
	if c.Records.DataDir == "" {
		c.Records.DataDir = d.Records.DataDir
	}
	if c.Records.Tokens == nil {
		c.Records.Tokens = map[string]string{}
	}
	if c.Scheduler.CheckInterval == "" {
		c.Scheduler.CheckInterval = d.Scheduler.CheckInterval
	}
	if c.Scheduler.MaxCatchUpDays <= 0 {
		c.Scheduler.MaxCatchUpDays = d.Scheduler.MaxCatchUpDays
	}
	if c.Streak.WeekWindowDays <= 0 {
		c.Streak.WeekWindowDays = d.Streak.WeekWindowDays
	}
	if c.Streak.ResetThreshold <= 0 {
		c.Streak.ResetThreshold = d.Streak.ResetThreshold
	}
	if c.Streak.RiskThreshold <= 0 {
		c.Streak.RiskThreshold = d.Streak.RiskThreshold
	}
	if c.Streak.RetentionDays <= 0 {
		c.Streak.RetentionDays = d.Streak.RetentionDays
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if len(c.Checklist) == 0 {
		c.Checklist = d.Checklist
	}
}

func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	for name, v := range map[string]string{
		"storage.write_timeout":    c.Storage.WriteTimeout,
		"remote.timeout":           c.Remote.Timeout,
		"scheduler.check_interval": c.Scheduler.CheckInterval,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("%s: invalid duration %q", name, v)
		}
	}
	if c.Streak.RiskThreshold > c.Streak.ResetThreshold {
		return fmt.Errorf("streak.risk_threshold (%d) exceeds streak.reset_threshold (%d)", c.Streak.RiskThreshold, c.Streak.ResetThreshold)
	}
	if !c.Identity.Anonymous() && c.Remote.BaseURL == "" {
		return fmt.Errorf("identity.user_id is set but remote.base_url is empty")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format: unknown value %q", c.Log.Format)
	}
	if err := task.ValidateSeeds(c.Checklist); err != nil {
		return fmt.Errorf("checklist: %w", err)
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (s StorageConfig) Timeout() time.Duration { return mustDuration(s.WriteTimeout, 15*time.Second) }

func (r RemoteConfig) RequestTimeout() time.Duration { return mustDuration(r.Timeout, 10*time.Second) }

func (s SchedulerConfig) Interval() time.Duration { return mustDuration(s.CheckInterval, time.Minute) }

func mustDuration(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// DefaultPath is where config init writes and Load looks by default.
func DefaultPath() string {
	return ExpandHome("~/.sakinah/config.yaml")
}

// WriteDefault renders the default configuration to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	header := "# sakinah configuration\n# Every key can be overridden with SAKINAH_<SECTION>_<KEY>, e.g. SAKINAH_SERVER_ADDR.\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}
