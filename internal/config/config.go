package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	RateLimit RateLimitConfig
	Probes    ProbesConfig
	History   HistoryConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type AuthConfig struct {
	// AdminSecret gates the data-admin actions (import/cleanup/save and
	// domain deletion). Empty disables those actions entirely.
	AdminSecret string
}

type SchedulerConfig struct {
	Interval      time.Duration
	WorkerCount   int
	CheckTimeout  time.Duration
	MaxConcurrent int
	ProbesPerSec  float64
	ProbeBurst    int
	QueueSize     int
}

type RateLimitConfig struct {
	Window        time.Duration
	Grace         time.Duration
	DefaultLimit  int
	SSLLimit      int
	SweepInterval time.Duration
}

type ProbesConfig struct {
	CertTimeout time.Duration
	HTTPTimeout time.Duration
	DNSResolver string
	Locations   []string
}

type HistoryConfig struct {
	RetentionDays int
	SnapshotPath  string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("SENTRY")
	viper.AutomaticEnv()

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("scheduler.interval", "1m")
	viper.SetDefault("scheduler.workercount", 4)
	viper.SetDefault("scheduler.checktimeout", "30s")
	viper.SetDefault("scheduler.maxconcurrent", 8)
	viper.SetDefault("scheduler.probespersec", 5.0)
	viper.SetDefault("scheduler.probeburst", 10)
	viper.SetDefault("scheduler.queuesize", 256)
	viper.SetDefault("ratelimit.window", "1m")
	viper.SetDefault("ratelimit.grace", "1m")
	viper.SetDefault("ratelimit.defaultlimit", 20)
	viper.SetDefault("ratelimit.ssllimit", 5)
	viper.SetDefault("ratelimit.sweepinterval", "10m")
	viper.SetDefault("probes.certtimeout", "10s")
	viper.SetDefault("probes.httptimeout", "15s")
	viper.SetDefault("probes.dnsresolver", "1.1.1.1:53")
	viper.SetDefault("probes.locations", []string{"default"})
	viper.SetDefault("history.retentiondays", 90)
	viper.SetDefault("history.snapshotpath", "monitoring-history.json")

	var cfg Config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if secret := os.Getenv("SENTRY_ADMIN_SECRET"); secret != "" {
		cfg.Auth.AdminSecret = secret
	}
	return &cfg, nil
}
