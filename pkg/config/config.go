package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	CRM      CRMConfig      `mapstructure:"crm"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Database DatabaseConfig `mapstructure:"database"`
}

type CRMConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type BrowserConfig struct {
	Attach      bool   `mapstructure:"attach"`
	Port        int    `mapstructure:"port"`
	Headless    bool   `mapstructure:"headless"`
	ProfilePath string `mapstructure:"profile_path"`
}

type SyncConfig struct {
	Limit        int    `mapstructure:"limit"`
	Loop         bool   `mapstructure:"loop"`
	DelayMinutes int    `mapstructure:"delay_minutes"`
	Debug        bool   `mapstructure:"debug"`
	CachePath    string `mapstructure:"cache_path"`
	AuditPath    string `mapstructure:"audit_path"`
	LockPath     string `mapstructure:"lock_path"`

	// HistoryCutoff bounds backward history scrolling, as a YYYY-MM-DD
	// date. Empty disables the cutoff.
	HistoryCutoff string `mapstructure:"history_cutoff"`

	MinPaceSeconds int `mapstructure:"min_pace_seconds"`
	MaxPaceSeconds int `mapstructure:"max_pace_seconds"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

// HistoryCutoffTime parses the configured cutoff date, zero when unset.
func (c SyncConfig) HistoryCutoffTime() (time.Time, error) {
	if c.HistoryCutoff == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", c.HistoryCutoff)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid history_cutoff %q: %v", c.HistoryCutoff, err)
	}
	return t, nil
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

// LoadConfig reads config from the given file, then applies environment
// overrides. A missing config file is not an error; defaults plus
// environment variables carry a flag-driven run on their own.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("crm.base_url", "http://localhost:3000")
	v.SetDefault("browser.attach", false)
	v.SetDefault("browser.port", 9222)
	v.SetDefault("browser.headless", false)
	v.SetDefault("sync.limit", 9999)
	v.SetDefault("sync.delay_minutes", 60)
	v.SetDefault("sync.cache_path", "sync_cache.json")
	v.SetDefault("sync.audit_path", "synced_conversations.log")
	v.SetDefault("sync.lock_path", "agentsync.lock")
	v.SetDefault("sync.min_pace_seconds", 5)
	v.SetDefault("sync.max_pace_seconds", 12)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)

	// Enable environment variable support
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if baseURL := v.GetString("CRM_BASE_URL"); baseURL != "" {
		config.CRM.BaseURL = baseURL
	}

	if profile := v.GetString("CHROME_PROFILE_PATH"); profile != "" {
		config.Browser.ProfilePath = profile
	}

	if v.GetString("DEBUG_SYNC") == "true" {
		config.Sync.Debug = true
	}

	return &config, nil
}
