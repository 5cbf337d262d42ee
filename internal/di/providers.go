package di

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"OpsPulse/internal/domain/models"
	"OpsPulse/internal/domain/repository"
	domservice "OpsPulse/internal/domain/service"
	"OpsPulse/internal/handler/api"
	internalrepo "OpsPulse/internal/repository"
	"OpsPulse/internal/service/notify"
	"OpsPulse/internal/service/ws"
	"OpsPulse/internal/services/alerting"
	"OpsPulse/internal/services/forecast"
	"OpsPulse/internal/services/risk"
	"OpsPulse/internal/usecase"
	"OpsPulse/pkg/cache"
	pkgch "OpsPulse/pkg/clickhouse"
	"OpsPulse/pkg/config"
	xhttp "OpsPulse/pkg/http"
	pkgkafka "OpsPulse/pkg/kafka"
	applogger "OpsPulse/pkg/logger"
	"OpsPulse/pkg/metrics"
	"OpsPulse/pkg/queue"
	"OpsPulse/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and applies the
// warehouse schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.Schema); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideMetricSource creates the ClickHouse-backed metric source.
func ProvideMetricSource(chClient *pkgch.Client, l *applogger.Logger) repository.MetricSource {
	store := internalrepo.NewCHMetricStore(chClient)
	store.SetLogger(l)
	return store
}

// ProvideRedisCache creates the shared Redis connection.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	host, port := splitAddr(cfg.Redis.Addr)
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCacheService layers an in-process cache over Redis for hot
// forecast keys.
func ProvideCacheService(rc *cache.RedisCache, cfg *config.Config) cache.Service {
	var opts []cache.LayeredOption
	if cfg.Cache.LocalSize > 0 {
		opts = append(opts, cache.WithLayeredMemorySize(cfg.Cache.LocalSize))
	}
	return cache.NewLayeredCache(rc, opts...)
}

// ProvideQueuePublisher creates the producer half of the Redis queue,
// shared by the email sink and the error-log collector.
func ProvideQueuePublisher(l *applogger.Logger, rc *cache.RedisCache) queue.QueueService {
	return queue.NewRedisPublisher(l, rc.Client())
}

// ProvideQueueConsumer creates the worker half of the Redis queue with
// every job registered.
func ProvideQueueConsumer(cfg *config.Config, l *applogger.Logger, rc *cache.RedisCache) *queue.RedisQueue {
	mailClient := xhttp.NewClient(xhttp.WithTimeout(15 * time.Second))
	jobs := []queue.Job{
		notify.NewMailJob(mailClient, cfg.Notify.Email.RelayURL, cfg.Notify.Email.From, l),
		notify.NewLogDigestJob(l),
	}
	return queue.NewRedisConsumer(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), jobs)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when the broker
// integration is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideHub creates the WebSocket hub for dashboard pushes.
func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.New(l)
}

// ProvideSinks assembles the delivery sinks. Dashboard is always on;
// the rest switch on with their config.
func ProvideSinks(cfg *config.Config, hub *ws.Hub, producer *pkgkafka.Producer, publisher queue.QueueService) []domservice.NotificationSink {
	sinks := []domservice.NotificationSink{notify.NewDashboardSink(hub)}

	if cfg.Notify.Webhook.URL != "" {
		client := xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
		sinks = append(sinks, notify.NewWebhookSink(client, cfg.Notify.Webhook.URL, cfg.Notify.Webhook.Token))
	}
	if len(cfg.Notify.Email.Recipients) > 0 {
		sinks = append(sinks, notify.NewEmailSink(publisher, cfg.Notify.Email.Recipients))
	}
	if producer != nil && cfg.Notify.SMS.Topic != "" {
		sinks = append(sinks, notify.NewSMSSink(producer, cfg.Notify.SMS.Topic))
	}
	return sinks
}

// ProvideRuleStore creates the rule cooldown store.
func ProvideRuleStore() repository.RuleStore {
	return internalrepo.NewMemoryRuleStore()
}

// ProvideAlertEngine creates the alert engine with rules from config.
func ProvideAlertEngine(
	cfg *config.Config,
	l *applogger.Logger,
	m repository.Metrics,
	ruleStore repository.RuleStore,
	sinks []domservice.NotificationSink,
) *alerting.Engine {
	engine := alerting.New(alerting.Config{
		DispatchTimeout: cfg.Alerting.DispatchTimeout,
	}, l, m, ruleStore, sinks...)
	engine.SetRules(rulesFromConfig(cfg.Rules))
	return engine
}

// ProvideForecaster creates the demand forecaster.
func ProvideForecaster() domservice.DemandForecaster {
	return forecast.New(forecast.DefaultConfig())
}

// ProvideScorer creates the churn scorer, overlaying model weights from
// disk when a model file is configured.
func ProvideScorer(cfg *config.Config) (domservice.ChurnScorer, error) {
	model := risk.DefaultModel()
	if cfg.Risk.ModelPath != "" {
		data, err := os.ReadFile(cfg.Risk.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("risk model %s: %w", cfg.Risk.ModelPath, err)
		}
		if err := yaml.Unmarshal(data, &model); err != nil {
			return nil, fmt.Errorf("risk model %s: %w", cfg.Risk.ModelPath, err)
		}
	}
	return risk.New(model), nil
}

// ProvideInsights creates the on-demand analytics use case.
func ProvideInsights(
	source repository.MetricSource,
	forecaster domservice.DemandForecaster,
	scorer domservice.ChurnScorer,
	c cache.Service,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.InsightsUseCase {
	return usecase.NewInsightsUseCase(source, forecaster, scorer, c, m, cfg.Cache.ForecastTTL)
}

// ProvideMonitor creates the background sweep use case.
func ProvideMonitor(
	cfg *config.Config,
	source repository.MetricSource,
	forecaster domservice.DemandForecaster,
	scorer domservice.ChurnScorer,
	engine *alerting.Engine,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.MonitorUseCase {
	return usecase.NewMonitorUseCase(usecase.MonitorConfig{
		Interval:          cfg.Monitor.Interval,
		WindowDays:        cfg.Monitor.WindowDays,
		AnomalyThreshold:  cfg.Monitor.AnomalyThreshold,
		WatchedMetrics:    cfg.Monitor.WatchedMetrics,
		DemandMetric:      cfg.Monitor.DemandMetric,
		SupplyMetric:      cfg.Monitor.SupplyMetric,
		SupplyHeadroom:    cfg.Monitor.SupplyHeadroom,
		CapacityHorizon:   cfg.Monitor.CapacityHorizon,
		ChurnBatchSize:    cfg.Monitor.ChurnBatchSize,
		SuppressionWindow: cfg.Monitor.SuppressionWindow,
	}, source, forecaster, scorer, engine, m, l)
}

// ProvideHandler creates the HTTP handler with all routes.
func ProvideHandler(
	l *applogger.Logger,
	insights *usecase.InsightsUseCase,
	engine *alerting.Engine,
	hub *ws.Hub,
	source repository.MetricSource,
) xhttp.Handler {
	return api.NewOpsEchoHandler(l, insights, engine, hub, source)
}

// ProvideApp creates the application server and attaches the error-log
// collector now that the queue publisher exists.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	hub *ws.Hub,
	monitor *usecase.MonitorUseCase,
	consumer *queue.RedisQueue,
	producer *pkgkafka.Producer,
	rc *cache.RedisCache,
	chClient *pkgch.Client,
	publisher queue.QueueService,
) *server.App {
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          notify.ErrorLogTopic,
		Publisher:      publisher,
	})
	return server.New(cfg, l, handler, hub, monitor, consumer, producer, rc, chClient)
}

// rulesFromConfig converts configured rules to their domain form.
func rulesFromConfig(rules []config.Rule) []models.AlertRule {
	out := make([]models.AlertRule, 0, len(rules))
	for _, r := range rules {
		conditions := make([]models.RuleCondition, 0, len(r.Conditions))
		for _, c := range r.Conditions {
			conditions = append(conditions, models.RuleCondition{
				Metric:    c.Metric,
				Operator:  models.RuleOperator(c.Operator),
				Threshold: c.Threshold,
			})
		}
		channels := make([]models.Channel, 0, len(r.Channels))
		for _, ch := range r.Channels {
			channels = append(channels, models.Channel(ch))
		}
		out = append(out, models.AlertRule{
			ID:              r.ID,
			Name:            r.Name,
			Conditions:      conditions,
			Severity:        models.Severity(r.Severity),
			Channels:        channels,
			CooldownMinutes: r.CooldownMinutes,
			Enabled:         r.Enabled,
		})
	}
	return out
}

// splitAddr splits "host:port" with sane fallbacks for bare hosts.
func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		if addr == "" {
			return "localhost", 6379
		}
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6379
	}
	return host, port
}
