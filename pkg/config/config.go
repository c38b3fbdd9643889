package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk server configuration. Env vars override file
// values; explicit flags win over both (resolved in Load/ApplyEnv).
type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`
	Webhook struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
		// QueueCapacity bounds the in-memory ingest queue.
		QueueCapacity int `yaml:"queue_capacity"`
		// Workers sets the number of ingest worker goroutines.
		Workers int `yaml:"workers"`
	} `yaml:"webhook"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Security struct {
		// APIKeys maps an API key to the business scope it grants.
		APIKeys map[string]string `yaml:"api_keys"`
		// AllowUnauth grants the "default" scope to unauthenticated
		// callers; intended for local development only.
		AllowUnauth bool `yaml:"allow_unauth"`
		RateLimit   struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"security"`
	Dispatch struct {
		// ArchivedReplyPolicy is one of "allow", "reject", "reopen".
		ArchivedReplyPolicy string `yaml:"archived_reply_policy"`
		MaxAttempts         int    `yaml:"max_attempts"`
		BackoffBase         string `yaml:"backoff_base"`
	} `yaml:"dispatch"`
	Suggest struct {
		Endpoint string `yaml:"endpoint"`
		Timeout  string `yaml:"timeout"`
		// ContextWindow bounds how many recent messages are forwarded.
		ContextWindow int `yaml:"context_window"`
		// RedisAddr enables the shared Redis suggestion cache when set.
		RedisAddr string `yaml:"redis_addr"`
	} `yaml:"suggest"`
	Archiver struct {
		Enabled bool   `yaml:"enabled"`
		Cron    string `yaml:"cron"`
		// IdleAfter is how long a thread may stay inactive before the
		// sweep archives it (Go duration, e.g. "720h").
		IdleAfter string `yaml:"idle_after"`
	} `yaml:"archiver"`
	Validation struct {
		MaxContentLen int `yaml:"max_content_len"`
	} `yaml:"validation"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Addr returns host:port for the operator API server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// WebhookAddr returns host:port for the connector webhook listener.
func (c *Config) WebhookAddr() string {
	addr := c.Webhook.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Webhook.Port
	if p == 0 {
		p = 8081
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// SuggestTimeout parses the configured suggestion deadline, defaulting
// to 3 seconds.
func (c *Config) SuggestTimeout() time.Duration {
	return parseDuration(c.Suggest.Timeout, 3*time.Second)
}

// DispatchBackoffBase parses the retry backoff base, defaulting to 500ms.
func (c *Config) DispatchBackoffBase() time.Duration {
	return parseDuration(c.Dispatch.BackoffBase, 500*time.Millisecond)
}

// ArchiverIdleAfter parses the idle window, defaulting to 30 days.
func (c *Config) ArchiverIdleAfter() time.Duration {
	return parseDuration(c.Archiver.IdleAfter, 30*24*time.Hour)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Load reads and parses the YAML config at path. A missing path yields
// a zero config without error so env-only deployments work.
func Load(path string) (*Config, error) {
	var c Config
	if path == "" {
		ApplyEnv(&c)
		return &c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnv(&c)
			return &c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	ApplyEnv(&c)
	return &c, nil
}

// ApplyEnv overlays INBOXD_* environment variables onto c.
func ApplyEnv(c *Config) {
	if v := os.Getenv("INBOXD_SERVER_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := envInt("INBOXD_SERVER_PORT"); v != 0 {
		c.Server.Port = v
	}
	if v := os.Getenv("INBOXD_WEBHOOK_ADDRESS"); v != "" {
		c.Webhook.Address = v
	}
	if v := envInt("INBOXD_WEBHOOK_PORT"); v != 0 {
		c.Webhook.Port = v
	}
	if v := os.Getenv("INBOXD_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("INBOXD_SUGGEST_ENDPOINT"); v != "" {
		c.Suggest.Endpoint = v
	}
	if v := os.Getenv("INBOXD_SUGGEST_REDIS_ADDR"); v != "" {
		c.Suggest.RedisAddr = v
	}
	if v := os.Getenv("INBOXD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("INBOXD_API_KEYS"); v != "" {
		// comma-separated key=business pairs
		if c.Security.APIKeys == nil {
			c.Security.APIKeys = map[string]string{}
		}
		for _, pair := range strings.Split(v, ",") {
			kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
			if len(kv) == 2 && kv[0] != "" && kv[1] != "" {
				c.Security.APIKeys[kv[0]] = kv[1]
			}
		}
	}
	if v := os.Getenv("INBOXD_ALLOW_UNAUTH"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			c.Security.AllowUnauth = true
		}
	}
}

func envInt(key string) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
