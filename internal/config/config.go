package config

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BrowserPoolConfig configures the shared headless-Chrome pool, named
// rather than inline so internal/browserpool can take it directly.
type BrowserPoolConfig struct {
	MaxBrowsers         int           `yaml:"max_browsers" default:"5"`
	MinBrowsers         int           `yaml:"min_browsers" default:"1"`
	MaxPagesPerBrowser  int           `yaml:"max_pages_per_browser" default:"10"`
	IdleTimeout         time.Duration `yaml:"idle_timeout" default:"5m"`
	AcquisitionTimeout  time.Duration `yaml:"acquisition_timeout" default:"30s"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" default:"1m"`
	RecycleAfterUses    int64         `yaml:"recycle_after_uses" default:"0"`
	RecycleThreshold    float64       `yaml:"recycle_threshold" default:"80"`
	RecycleCooldown     time.Duration `yaml:"recycle_cooldown" default:"5m"`
	RecycleBatchSize    int           `yaml:"recycle_batch_size" default:"3"`
	Headless            bool          `yaml:"headless" default:"true"`
	StealthMode         bool          `yaml:"stealth_mode" default:"true"`
}

// SessionConfig configures the Session Store's lifecycle and persistence.
type SessionConfig struct {
	TTLDefault      time.Duration `yaml:"ttl_default" default:"30m"`
	MaxPerUser      int           `yaml:"max_per_user" default:"10"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1m"`
	Persist         bool          `yaml:"persist" default:"false"`
	FlushInterval   time.Duration `yaml:"flush_interval" default:"5s"`
	BatchSize       int           `yaml:"batch_size" default:"10"`
}

// RedisConfig configures the optional Redis-backed session persister.
type RedisConfig struct {
	URL      string        `yaml:"url" default:"redis://localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" default:"0"`
	Timeout  time.Duration `yaml:"timeout" default:"5s"`
}

// Config represents the control plane's configuration, loaded from an
// optional YAML file and overlaid with environment variables.
type Config struct {
	Server struct {
		Port         int           `yaml:"port" default:"8080"`
		Host         string        `yaml:"host" default:"0.0.0.0"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
		IdleTimeout  time.Duration `yaml:"idle_timeout" default:"60s"`
	} `yaml:"server"`

	BrowserPool BrowserPoolConfig `yaml:"browser_pool"`

	Session SessionConfig `yaml:"session"`

	Security struct {
		TLSEnabled      bool   `yaml:"tls_enabled" default:"false"`
		TLSCertPath     string `yaml:"tls_cert_path"`
		TLSKeyPath      string `yaml:"tls_key_path"`
		TLSCAPath       string `yaml:"tls_ca_path"`
		TLSClientAuth   string `yaml:"tls_client_auth" default:"none"`
		JWTSigningKey   string `yaml:"jwt_signing_key"`
		JWTIssuer       string `yaml:"jwt_issuer"`
		APIKeyHeader    string `yaml:"api_key_header" default:"X-API-Key"`
	} `yaml:"security"`

	Limits struct {
		ActionMaxBatch int `yaml:"action_max_batch" default:"100"`
		ScriptMaxBytes int `yaml:"script_max_bytes" default:"50000"`
		CSSMaxBytes    int `yaml:"css_max_bytes" default:"100000"`
		NavHistoryMax  int `yaml:"nav_history_max" default:"200"`
		MaxRetries     int `yaml:"max_retries" default:"3"`
	} `yaml:"limits"`

	Retry struct {
		BaseDelay time.Duration `yaml:"base_delay" default:"1s"`
		Backoff   float64       `yaml:"backoff" default:"2"`
		MaxDelay  time.Duration `yaml:"max_delay" default:"5s"`
	} `yaml:"retry"`

	RateLimit struct {
		RequestsPerMinute int `yaml:"requests_per_minute" default:"60"`
		Burst             int `yaml:"burst" default:"5"`
		MaxFailures       int `yaml:"max_failures" default:"5"`
		ResetTimeout      time.Duration `yaml:"reset_timeout" default:"30s"`
	} `yaml:"rate_limit"`

	Fabric struct {
		ReadBufferSize   int           `yaml:"read_buffer_size" default:"4096"`
		WriteBufferSize  int           `yaml:"write_buffer_size" default:"4096"`
		SendQueueSize    int           `yaml:"send_queue_size" default:"256"`
		PreAuthQueueSize int           `yaml:"pre_auth_queue_size" default:"16"`
		PingInterval     time.Duration `yaml:"ping_interval" default:"30s"`
		PongTimeout      time.Duration `yaml:"pong_timeout" default:"60s"`
	} `yaml:"fabric"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`

		Adapters []struct {
			Name    string                 `yaml:"name"`
			Type    string                 `yaml:"type"`
			Enabled bool                   `yaml:"enabled"`
			Options map[string]interface{} `yaml:"options"`
		} `yaml:"adapters"`
	} `yaml:"logging"`

	Redis RedisConfig `yaml:"redis"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
}

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Server.Port = 8080
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second

	cfg.BrowserPool.MaxBrowsers = 5
	cfg.BrowserPool.MinBrowsers = 1
	cfg.BrowserPool.MaxPagesPerBrowser = 10
	cfg.BrowserPool.IdleTimeout = 5 * time.Minute
	cfg.BrowserPool.AcquisitionTimeout = 30 * time.Second
	cfg.BrowserPool.HealthCheckInterval = time.Minute
	cfg.BrowserPool.RecycleThreshold = 80
	cfg.BrowserPool.RecycleCooldown = 5 * time.Minute
	cfg.BrowserPool.RecycleBatchSize = 3
	cfg.BrowserPool.Headless = true
	cfg.BrowserPool.StealthMode = true

	cfg.Session.TTLDefault = 30 * time.Minute
	cfg.Session.MaxPerUser = 10
	cfg.Session.CleanupInterval = time.Minute
	cfg.Session.FlushInterval = 5 * time.Second
	cfg.Session.BatchSize = 10

	cfg.Security.TLSClientAuth = "none"
	cfg.Security.APIKeyHeader = "X-API-Key"

	cfg.Limits.ActionMaxBatch = 100
	cfg.Limits.ScriptMaxBytes = 50000
	cfg.Limits.CSSMaxBytes = 100000
	cfg.Limits.NavHistoryMax = 200
	cfg.Limits.MaxRetries = 3

	cfg.Retry.BaseDelay = time.Second
	cfg.Retry.Backoff = 2
	cfg.Retry.MaxDelay = 5 * time.Second

	cfg.RateLimit.RequestsPerMinute = 60
	cfg.RateLimit.Burst = 5
	cfg.RateLimit.MaxFailures = 5
	cfg.RateLimit.ResetTimeout = 30 * time.Second

	cfg.Fabric.ReadBufferSize = 4096
	cfg.Fabric.WriteBufferSize = 4096
	cfg.Fabric.SendQueueSize = 256
	cfg.Fabric.PreAuthQueueSize = 16
	cfg.Fabric.PingInterval = 30 * time.Second
	cfg.Fabric.PongTimeout = 60 * time.Second

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stdout"

	cfg.Redis.URL = "redis://localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.Timeout = 5 * time.Second

	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			yamlContent := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(yamlContent), cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromEnv overlays environment variables on top of file/defaults, per
// the enumerated variable names in the control plane's configuration surface.
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if v := os.Getenv("BROWSER_POOL_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BrowserPool.MaxBrowsers = n
		}
	}
	if v := os.Getenv("BROWSER_MAX_PAGES_PER_BROWSER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BrowserPool.MaxPagesPerBrowser = n
		}
	}
	if v := os.Getenv("BROWSER_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.BrowserPool.IdleTimeout = d
		}
	}
	if v := os.Getenv("BROWSER_ACQUIRE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.BrowserPool.AcquisitionTimeout = d
		}
	}
	if v := os.Getenv("BROWSER_HEALTH_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.BrowserPool.HealthCheckInterval = d
		}
	}

	if v := os.Getenv("SESSION_TTL_DEFAULT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Session.TTLDefault = d
		}
	}
	if v := os.Getenv("SESSION_MAX_PER_USER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.MaxPerUser = n
		}
	}
	if v := os.Getenv("SESSION_CLEANUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Session.CleanupInterval = d
		}
	}
	if v := os.Getenv("SESSION_PERSIST"); v != "" {
		c.Session.Persist = v == "true" || v == "1"
	}
	if v := os.Getenv("SESSION_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Session.FlushInterval = d
		}
	}
	if v := os.Getenv("SESSION_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.BatchSize = n
		}
	}

	if v := os.Getenv("TLS_ENABLED"); v != "" {
		c.Security.TLSEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SERVER_TLS_CERT_PATH"); v != "" {
		c.Security.TLSCertPath = v
	}
	if v := os.Getenv("SERVER_TLS_KEY_PATH"); v != "" {
		c.Security.TLSKeyPath = v
	}
	if v := os.Getenv("SERVER_TLS_CA_PATH"); v != "" {
		c.Security.TLSCAPath = v
	}
	if v := os.Getenv("SERVER_TLS_CLIENT_AUTH"); v != "" {
		c.Security.TLSClientAuth = v
	}
	if v := os.Getenv("JWT_SIGNING_KEY"); v != "" {
		c.Security.JWTSigningKey = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		c.Security.JWTIssuer = v
	}

	if v := os.Getenv("ACTION_MAX_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Limits.ActionMaxBatch = n
		}
	}
	if v := os.Getenv("SCRIPT_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Limits.ScriptMaxBytes = n
		}
	}
	if v := os.Getenv("CSS_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Limits.CSSMaxBytes = n
		}
	}
	if v := os.Getenv("NAV_HISTORY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Limits.NavHistoryMax = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv("BETTERSTACK_ENABLED"); v != "" {
		enabled := v == "true" || v == "1"
		for i := range c.Logging.Adapters {
			if c.Logging.Adapters[i].Name == "betterstack" || c.Logging.Adapters[i].Type == "betterstack" {
				c.Logging.Adapters[i].Enabled = enabled
				break
			}
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
	if v := os.Getenv("REDIS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Redis.Timeout = d
		}
	}

	c.loadLoggingAdapterEnvVars()
}

// loadLoggingAdapterEnvVars loads environment variables for logging adapters
func (c *Config) loadLoggingAdapterEnvVars() {
	for i := range c.Logging.Adapters {
		adapter := &c.Logging.Adapters[i]

		switch adapter.Type {
		case "betterstack":
			setOpt := func(key, value string) {
				if adapter.Options == nil {
					adapter.Options = make(map[string]interface{})
				}
				adapter.Options[key] = value
			}
			if v := os.Getenv("BETTERSTACK_SOURCE_TOKEN"); v != "" {
				setOpt("source_token", v)
			}
			if v := os.Getenv("BETTERSTACK_ENDPOINT"); v != "" {
				setOpt("endpoint", v)
			}
			if v := os.Getenv("BETTERSTACK_BATCH_SIZE"); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					if adapter.Options == nil {
						adapter.Options = make(map[string]interface{})
					}
					adapter.Options["batch_size"] = n
				}
			}
			if v := os.Getenv("BETTERSTACK_FLUSH_INTERVAL"); v != "" {
				setOpt("flush_interval", v)
			}
			if v := os.Getenv("BETTERSTACK_MAX_RETRIES"); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					if adapter.Options == nil {
						adapter.Options = make(map[string]interface{})
					}
					adapter.Options["max_retries"] = n
				}
			}
			if v := os.Getenv("BETTERSTACK_TIMEOUT"); v != "" {
				setOpt("timeout", v)
			}
		case "file":
			if v := os.Getenv("LOG_FILE_PATH"); v != "" {
				if adapter.Options == nil {
					adapter.Options = make(map[string]interface{})
				}
				adapter.Options["file_path"] = v
			}
		}
	}
}
