package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 9090, cfg.GRPC.Port)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, "kafka", cfg.Messaging.Driver)
	assert.Equal(t, "orders.events", cfg.Messaging.Kafka.Topic)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
	assert.Equal(t, "order-service", cfg.Observability.ServiceName)
	assert.False(t, cfg.Discovery.Enabled)
	assert.Equal(t, time.Second, cfg.Messaging.Workers.PollInterval)
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MESSAGING_DRIVER", "rabbitmq")
	t.Setenv("RABBITMQ_PREFETCH", "0")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("OBS_LOG_LEVEL", "  DEBUG ")
	t.Setenv("OBS_PROMETHEUS_PATH", "prom")
	t.Setenv("WORKER_CONCURRENCY", "-3")
	t.Setenv("DB_READER_DSN", "postgres://reader")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "rabbitmq", cfg.Messaging.Driver)
	assert.Equal(t, 1, cfg.Messaging.RabbitMQ.Prefetch)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Messaging.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "/prom", cfg.Observability.PrometheusPath)
	assert.Equal(t, 1, cfg.Messaging.Workers.Concurrency)
	assert.Equal(t, "postgres://reader", cfg.Database.ReaderDSN)
}

func TestNew_MessagingDisabled(t *testing.T) {
	t.Setenv("MESSAGING_ENABLED", "false")
	t.Setenv("MESSAGING_DRIVER", "something-else")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
}

func TestNew_DiscoveryServiceID(t *testing.T) {
	t.Setenv("DISCOVERY_ENABLED", "true")
	t.Setenv("HTTP_PORT", "8181")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "order-service-8181", cfg.Discovery.ServiceID)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "http port", env: map[string]string{"HTTP_PORT": "0"}, want: "invalid HTTP port"},
		{name: "grpc port", env: map[string]string{"GRPC_PORT": "-1"}, want: "invalid gRPC port"},
		{name: "cache driver", env: map[string]string{"CACHE_DRIVER": "memcached"}, want: "unsupported cache driver"},
		{name: "redis addr", env: map[string]string{"REDIS_ADDR": ""}, want: "missing REDIS_ADDR"},
		{name: "messaging driver", env: map[string]string{"MESSAGING_DRIVER": "nats"}, want: "unsupported messaging driver"},
		{name: "kafka topic", env: map[string]string{"KAFKA_TOPIC": ""}, want: "KAFKA_TOPIC must be provided"},
		{name: "rabbit url", env: map[string]string{"MESSAGING_DRIVER": "rabbitmq", "RABBITMQ_URL": ""}, want: "RABBITMQ_URL must be provided"},
		{name: "writer dsn", env: map[string]string{"DB_WRITER_DSN": ""}, want: "missing DB_WRITER_DSN"},
		{name: "consul addr", env: map[string]string{"DISCOVERY_ENABLED": "true", "CONSUL_ADDR": ""}, want: "CONSUL_ADDR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := New()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnvHelpers_MalformedFallsBack(t *testing.T) {
	t.Setenv("ORDERS_TEST_INT", "twelve")
	t.Setenv("ORDERS_TEST_BOOL", "maybe")
	t.Setenv("ORDERS_TEST_DURATION", "soon")
	t.Setenv("ORDERS_TEST_LIST", " , ")

	assert.Equal(t, 7, getEnvAsInt("ORDERS_TEST_INT", 7))
	assert.True(t, getEnvAsBool("ORDERS_TEST_BOOL", true))
	assert.Equal(t, time.Second, getEnvAsDuration("ORDERS_TEST_DURATION", time.Second))
	assert.Equal(t, []string{"x"}, getEnvAsStringSlice("ORDERS_TEST_LIST", []string{"x"}))
	assert.Equal(t, "fallback", getEnv("ORDERS_TEST_UNSET", "fallback"))
}

func TestNew_ReportsAllProblems(t *testing.T) {
	t.Setenv("HTTP_PORT", "0")
	t.Setenv("DB_WRITER_DSN", "")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
	assert.Contains(t, err.Error(), "missing DB_WRITER_DSN")
}
