package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"pushnami/api/config"
	"pushnami/api/logger"
)

type ClickHouseClient struct {
	Conn clickhouse.Conn
	log  *logger.Logger
}

func NewClickHouseDB(cfg config.ClickHouseConfig, log *logger.Logger) (*ClickHouseClient, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, fmt.Errorf("CLICKHOUSE_HOST or CLICKHOUSE_DB_NAME environment variables are not set")
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "pushnami-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("Connected to ClickHouse", "host", cfg.Host, "database", cfg.Database)
	return &ClickHouseClient{Conn: conn, log: log}, nil
}

// EnsureEventsTable creates the events table used by the ClickHouse event store.
func (c *ClickHouseClient) EnsureEventsTable(ctx context.Context) error {
	err := c.Conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id            UUID,
			visitor_id    String,
			experiment_id Nullable(UUID),
			variant       Nullable(String),
			event_type    LowCardinality(String),
			event_name    Nullable(String),
			metadata      String,
			page_url      Nullable(String),
			user_agent    Nullable(String),
			created_at    DateTime64(3, 'UTC')
		) ENGINE = MergeTree
		ORDER BY (event_type, created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse events table: %w", err)
	}
	return nil
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		c.Conn.Close()
		c.log.Info("ClickHouse connection closed")
	}
}
