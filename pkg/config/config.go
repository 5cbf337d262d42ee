package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Logging     struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Cache struct {
		ForecastTTL time.Duration `yaml:"forecast_ttl"`
		LocalTTL    time.Duration `yaml:"local_ttl"`
		LocalSize   int           `yaml:"local_size"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		QueueSize  int           `yaml:"queue_size"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Monitor struct {
		Interval          time.Duration `yaml:"interval"`
		WindowDays        int           `yaml:"window_days"`
		AnomalyThreshold  float64       `yaml:"anomaly_threshold"`
		WatchedMetrics    []string      `yaml:"watched_metrics"`
		DemandMetric      string        `yaml:"demand_metric"`
		SupplyMetric      string        `yaml:"supply_metric"`
		SupplyHeadroom    float64       `yaml:"supply_headroom"`
		CapacityHorizon   int           `yaml:"capacity_horizon"`
		ChurnBatchSize    int           `yaml:"churn_batch_size"`
		SuppressionWindow time.Duration `yaml:"suppression_window"`
	} `yaml:"monitor"`
	Alerting struct {
		DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
	} `yaml:"alerting"`
	Notify struct {
		Webhook struct {
			URL   string `yaml:"url"`
			Token string `yaml:"token"`
		} `yaml:"webhook"`
		Email struct {
			Recipients []string `yaml:"recipients"`
			RelayURL   string   `yaml:"relay_url"`
			From       string   `yaml:"from"`
		} `yaml:"email"`
		SMS struct {
			Topic string `yaml:"topic"`
		} `yaml:"sms"`
	} `yaml:"notify"`
	Risk struct {
		ModelPath string `yaml:"model_path"`
	} `yaml:"risk"`
	Rules []Rule `yaml:"rules"`
}

// Rule is the YAML form of an alert rule; the DI layer converts it to
// the domain type at startup.
type Rule struct {
	ID              string      `yaml:"id"`
	Name            string      `yaml:"name"`
	Severity        string      `yaml:"severity"`
	Channels        []string    `yaml:"channels"`
	CooldownMinutes int         `yaml:"cooldown_minutes"`
	Enabled         bool        `yaml:"enabled"`
	Conditions      []Condition `yaml:"conditions"`
}

type Condition struct {
	Metric    string  `yaml:"metric"`
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

var validOperators = map[string]bool{
	"gt": true, "gte": true, "lt": true, "lte": true, "eq": true,
}

var validSeverities = map[string]bool{
	"critical": true, "high": true, "medium": true, "low": true,
}

var validChannels = map[string]bool{
	"dashboard": true, "email": true, "webhook": true, "sms": true,
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		c.Notify.Webhook.URL = v
	}
	if v := os.Getenv("WEBHOOK_TOKEN"); v != "" {
		c.Notify.Webhook.Token = v
	}
	if v := os.Getenv("EMAIL_RECIPIENTS"); v != "" {
		c.Notify.Email.Recipients = strings.Split(v, ",")
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}

	seen := make(map[string]bool, len(c.Rules))
	for i, r := range c.Rules {
		if r.ID == "" {
			return fmt.Errorf("rules[%d].id is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("rules[%d].id %q is duplicated", i, r.ID)
		}
		seen[r.ID] = true
		if !validSeverities[r.Severity] {
			return fmt.Errorf("rules[%d].severity %q must be one of critical, high, medium, low", i, r.Severity)
		}
		if len(r.Conditions) == 0 {
			return fmt.Errorf("rules[%d] must have at least one condition", i)
		}
		for j, cond := range r.Conditions {
			if cond.Metric == "" {
				return fmt.Errorf("rules[%d].conditions[%d].metric is required", i, j)
			}
			if !validOperators[cond.Operator] {
				return fmt.Errorf("rules[%d].conditions[%d].operator %q must be one of gt, gte, lt, lte, eq", i, j, cond.Operator)
			}
		}
		for j, ch := range r.Channels {
			if !validChannels[ch] {
				return fmt.Errorf("rules[%d].channels[%d] %q must be one of dashboard, email, webhook, sms", i, j, ch)
			}
		}
	}
	return nil
}
