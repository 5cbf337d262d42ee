package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"OpsPulse/pkg/config"
)

const sampleYAML = `
environment: test
logging:
  level: debug
  format: console
server:
  port: 9090
  shutdown_timeout: 15s
clickhouse:
  host: ch.internal
  port: 9000
  database: opspulse
redis:
  addr: redis.internal:6379
kafka:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]
monitor:
  interval: 2m
  watched_metrics: [sessions_booked, payment_failures]
  demand_metric: sessions_booked
  supply_metric: tutor_hours
notify:
  webhook:
    url: https://hooks.internal/opspulse
  email:
    recipients: [ops@example.com]
    relay_url: https://mail.internal/send
    from: alerts@example.com
rules:
  - id: rule-cancel
    name: High cancellations
    severity: high
    cooldown_minutes: 30
    enabled: true
    conditions:
      - metric: cancellations
        operator: gt
        threshold: 10
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesFullTree(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Environment != "test" || cfg.Server.Port != 9090 {
		t.Errorf("environment/port = %s/%d", cfg.Environment, cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Monitor.Interval != 2*time.Minute || len(cfg.Monitor.WatchedMetrics) != 2 {
		t.Errorf("monitor = %+v", cfg.Monitor)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Conditions[0].Operator != "gt" {
		t.Errorf("rules = %+v", cfg.Rules)
	}
	if cfg.Notify.Email.Recipients[0] != "ops@example.com" {
		t.Errorf("notify = %+v", cfg.Notify)
	}
}

func TestLoadRejectsInvalidConfigs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing environment",
			yaml: "clickhouse: {host: ch}\nredis: {addr: r:6379}",
			want: "environment",
		},
		{
			name: "missing clickhouse host",
			yaml: "environment: test\nredis: {addr: r:6379}",
			want: "clickhouse.host",
		},
		{
			name: "kafka enabled without brokers",
			yaml: "environment: test\nclickhouse: {host: ch}\nredis: {addr: r:6379}\nkafka: {enabled: true}",
			want: "kafka.brokers",
		},
		{
			name: "rule without conditions",
			yaml: sampleYAML + "\n  - id: empty-rule\n    severity: low\n    enabled: true\n",
			want: "at least one condition",
		},
		{
			name: "rule with unknown operator",
			yaml: strings.Replace(sampleYAML, "operator: gt", "operator: between", 1),
			want: "operator",
		},
		{
			name: "duplicate rule id",
			yaml: sampleYAML + `
  - id: rule-cancel
    severity: low
    enabled: true
    conditions:
      - metric: x
        operator: lt
        threshold: 1
`,
			want: "duplicated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis-override:6379")
	t.Setenv("WEBHOOK_TOKEN", "t0ken")
	t.Setenv("EMAIL_RECIPIENTS", "a@example.com,b@example.com")

	cfg, err := config.LoadWithEnv(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Redis.Addr != "redis-override:6379" {
		t.Errorf("redis addr = %s", cfg.Redis.Addr)
	}
	if cfg.Notify.Webhook.Token != "t0ken" {
		t.Errorf("webhook token = %s", cfg.Notify.Webhook.Token)
	}
	if len(cfg.Notify.Email.Recipients) != 2 {
		t.Errorf("recipients = %v", cfg.Notify.Email.Recipients)
	}
}
