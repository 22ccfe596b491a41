//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

const seedSQL = `
CREATE TABLE profiles_2021 (
    profile_id       BIGINT PRIMARY KEY,
    float_id         BIGINT NOT NULL,
    latitude         DOUBLE PRECISION,
    longitude        DOUBLE PRECISION,
    depth_min        DOUBLE PRECISION,
    depth_max        DOUBLE PRECISION,
    file_path        TEXT,
    profile_datetime TIMESTAMP
);
CREATE TABLE measurements (
    profile_id  BIGINT NOT NULL,
    pressure    DOUBLE PRECISION,
    temperature DOUBLE PRECISION,
    salinity    DOUBLE PRECISION
);
INSERT INTO profiles_2021 VALUES
    (102, 2902100, 13.02, 80.31, 5, 1500, 'nodc_2902100_prof.nc', '2021-03-20 06:00:00'),
    (101, 2902100, 13.00, 80.30, 5, 1200, 'nodc_2902100_prof.nc', '2021-03-04 06:00:00'),
    (201, 2902101, 14.00, 81.00, 4, 900,  'nodc_2902101_prof.nc', '2021-03-10 12:00:00'),
    (301, 2902102, 13.50, 80.50, 6, 800,  'nodc_2902102_prof.nc', '2021-04-02 00:00:00'),
    (401, 2902103, 12.00, 79.00, 3, 700,  'nodc_2902103_prof.nc', '2021-03-15 00:00:00');
INSERT INTO measurements VALUES
    (101, 5,    29.0, 33.0),
    (101, 1000, 5.0,  35.0),
    (102, 5,    28.0, 33.2),
    (201, 4,    27.5, NULL);
`

// indexCSV lists three floats valid in March 2021 and one valid only in
// April, in the loader's index layout.
const indexCSV = `floatid,file,latitude_min,latitude_max,longitude_min,longitude_max,date_time_min,date_time_max
2902100,nodc_2902100_prof.nc,12.99,13.01,80.29,80.31,2021-03-04 00:00:00,2021-03-04 12:00:00
2902101,nodc_2902101_prof.nc,13.99,14.01,80.99,81.01,2021-03-10 00:00:00,2021-03-10 23:00:00
2902103,nodc_2902103_prof.nc,11.99,12.01,78.99,79.01,2021-03-15 00:00:00,2021-03-15 06:00:00
2902102,nodc_2902102_prof.nc,13.49,13.51,80.49,80.51,2021-04-02 00:00:00,2021-04-02 06:00:00
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startPostgres runs a seeded Postgres and returns its connection URL.
func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	pg, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("all_indian_ocean"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pg)
	require.NoError(t, err, "start postgres container")

	url, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return url
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	k, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("ocean-query-test"))
	testcontainers.CleanupContainer(t, k)
	require.NoError(t, err, "start kafka container")

	brokers, err := k.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// writeIndex lays out the March 2021 index under a fresh dataset root.
func writeIndex(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "2021")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, fmt.Sprintf("argo_index_in%04d%02d.txt", 2021, 3))
	require.NoError(t, os.WriteFile(path, []byte(indexCSV), 0o600))
	return root
}
