package test

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/joao-fontenele/storefront/internal/telemetry"
)

// ActivityDB starts Postgres with the activity schema applied and returns an
// instrumented handle. The container and the handle are released with t.
func ActivityDB(ctx context.Context, t *testing.T) *sql.DB {
	t.Helper()

	ctr, err := postgres.Run(ctx, "postgres:18-alpine",
		postgres.WithDatabase("activity"),
		postgres.WithUsername("activity"),
		postgres.WithPassword("activity"),
		testcontainers.WithWaitStrategy(wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(45*time.Second)),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start postgres")

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := migrate.New(migrationsSource(), dsn)
	require.NoError(t, err, "open migrations")
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("apply migrations: %v", err)
	}
	_, _ = m.Close()

	db, err := telemetry.OpenDB("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.PingContext(ctx))
	return db
}

// migrationsSource points at the repository's migrations directory no matter
// which package runs the test.
func migrationsSource() string {
	_, file, _, _ := runtime.Caller(0)
	return "file://" + filepath.Join(filepath.Dir(file), "..", "migrations")
}

// Brokers starts a single KRaft node, creates topics with one partition each
// and returns the bootstrap addresses.
func Brokers(ctx context.Context, t *testing.T, topics ...string) []string {
	t.Helper()

	ctr, err := kafka.Run(ctx, "confluentinc/confluent-local:7.8.0", kafka.WithClusterID("storefront-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	if len(topics) > 0 {
		createTopics(ctx, t, brokers[0], topics)
	}
	return brokers
}

func createTopics(ctx context.Context, t *testing.T, broker string, topics []string) {
	t.Helper()

	conn, err := kafkago.DialContext(ctx, "tcp", broker)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer func() { _ = ctrl.Close() }()

	configs := make([]kafkago.TopicConfig, 0, len(topics))
	for _, name := range topics {
		configs = append(configs, kafkago.TopicConfig{Topic: name, NumPartitions: 1, ReplicationFactor: 1})
	}
	require.NoError(t, ctrl.CreateTopics(configs...), "create topics")
}
