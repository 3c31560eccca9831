package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Service struct {
		Name        string `mapstructure:"name"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"service"`
	Database struct {
		Driver       string `mapstructure:"driver"` // "mysql" or "postgres"
		DSN          string `mapstructure:"dsn"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"database"`
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Monitor    MonitorConfig `mapstructure:"monitor"`
	Thresholds Thresholds    `mapstructure:"thresholds"`
	Alert      AlertConfig   `mapstructure:"alert"`
}

type MonitorConfig struct {
	CollectionIntervalSeconds int `mapstructure:"collection_interval_seconds"`
	RetentionDays             int `mapstructure:"retention_days"`
	ProbeTimeoutSeconds       int `mapstructure:"probe_timeout_seconds"`
	ShutdownTimeoutSeconds    int `mapstructure:"shutdown_timeout_seconds"`
}

// Thresholds holds the per-category alert thresholds. Rules built from
// them are pure predicates over a snapshot.
type Thresholds struct {
	ConnectionUtilizationPct float64 `mapstructure:"connection_utilization_pct"`
	SlowQueryMs              float64 `mapstructure:"slow_query_ms"`
	LockWaitSeconds          float64 `mapstructure:"lock_wait_seconds"`
	CacheHitRatePct          float64 `mapstructure:"cache_hit_rate_pct"`
	DiskUsagePct             float64 `mapstructure:"disk_usage_pct"`
	ReplicationLagSeconds    float64 `mapstructure:"replication_lag_seconds"`
}

type AlertConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Slack   struct {
		Token   string `mapstructure:"token"`
		Channel string `mapstructure:"channel"`
	} `mapstructure:"slack"`
	Email struct {
		SMTPHost    string   `mapstructure:"smtp_host"`
		SMTPPort    int      `mapstructure:"smtp_port"`
		From        string   `mapstructure:"from"`
		Password    string   `mapstructure:"password"`
		ToReceivers []string `mapstructure:"to_receivers"`
	} `mapstructure:"email"`
}

func (m MonitorConfig) CollectionInterval() time.Duration {
	return time.Duration(m.CollectionIntervalSeconds) * time.Second
}

func (m MonitorConfig) ProbeTimeout() time.Duration {
	return time.Duration(m.ProbeTimeoutSeconds) * time.Second
}

func (m MonitorConfig) ShutdownTimeout() time.Duration {
	return time.Duration(m.ShutdownTimeoutSeconds) * time.Second
}

// MaxSnapshots derives the count cap of the in-memory history from the
// retention window and the collection cadence.
func (m MonitorConfig) MaxSnapshots() int {
	if m.CollectionIntervalSeconds <= 0 {
		return 0
	}
	return m.RetentionDays * 86400 / m.CollectionIntervalSeconds
}

func setDefaults() {
	viper.SetDefault("service.name", "dbsentry")
	viper.SetDefault("service.environment", "development")
	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.dsn", "root@tcp(127.0.0.1:3306)/")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("monitor.collection_interval_seconds", 60)
	viper.SetDefault("monitor.retention_days", 7)
	viper.SetDefault("monitor.probe_timeout_seconds", 5)
	viper.SetDefault("monitor.shutdown_timeout_seconds", 10)
	viper.SetDefault("thresholds.connection_utilization_pct", 85)
	viper.SetDefault("thresholds.slow_query_ms", 1000)
	viper.SetDefault("thresholds.lock_wait_seconds", 2)
	viper.SetDefault("thresholds.cache_hit_rate_pct", 90)
	viper.SetDefault("thresholds.disk_usage_pct", 90)
	viper.SetDefault("thresholds.replication_lag_seconds", 10)
	viper.SetDefault("alert.enabled", false)
	viper.SetDefault("alert.email.smtp_port", 587)
}

// LoadConfig reads config.yaml from the working directory, falling back
// to defaults when the file is absent.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	if cfg.Database.Driver != "mysql" && cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if cfg.Monitor.CollectionIntervalSeconds <= 0 {
		return nil, fmt.Errorf("collection interval must be positive, got %d", cfg.Monitor.CollectionIntervalSeconds)
	}
	if cfg.Monitor.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", cfg.Monitor.RetentionDays)
	}

	return &cfg, nil
}
