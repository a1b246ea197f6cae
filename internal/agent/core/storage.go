package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/marketscout/config"
)

// NewStorage builds the report store selected by config.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStorage(), nil
	case "redis":
		return NewRedisStorage(ctx, cfg.Redis)
	case "postgres":
		return NewPostgresStorage(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

// MemoryStorage keeps reports in-process. The default for development and
// tests; reports vanish on restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	reports map[string]Envelope
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{reports: make(map[string]Envelope)}
}

func (s *MemoryStorage) SaveReport(_ context.Context, id string, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[id] = env
	return nil
}

func (s *MemoryStorage) GetReport(_ context.Context, id string) (Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env, ok := s.reports[id]
	if !ok {
		return Envelope{}, ErrReportNotFound
	}
	return env, nil
}

// RedisStorage stores JSON-encoded envelopes with a TTL.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStorage(ctx context.Context, cfg config.RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStorage{client: client, ttl: ttl}, nil
}

func redisReportKey(id string) string {
	return "marketscout:report:" + id
}

func (s *RedisStorage) SaveReport(ctx context.Context, id string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding report %s: %w", id, err)
	}
	if err := s.client.Set(ctx, redisReportKey(id), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving report %s: %w", id, err)
	}
	return nil
}

func (s *RedisStorage) GetReport(ctx context.Context, id string) (Envelope, error) {
	payload, err := s.client.Get(ctx, redisReportKey(id)).Bytes()
	if err == redis.Nil {
		return Envelope{}, ErrReportNotFound
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("loading report %s: %w", id, err)
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding report %s: %w", id, err)
	}
	return env, nil
}

// PostgresStorage stores envelopes as JSONB rows.
type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(ctx context.Context, cfg config.PostgresConfig) (*PostgresStorage, error) {
	dsn := cfg.URL
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	s := &PostgresStorage{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStorage) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS reports (
			id         TEXT PRIMARY KEY,
			envelope   JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensuring reports schema: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SaveReport(ctx context.Context, id string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding report %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, envelope) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET envelope = EXCLUDED.envelope`,
		id, payload)
	if err != nil {
		return fmt.Errorf("saving report %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStorage) GetReport(ctx context.Context, id string) (Envelope, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT envelope FROM reports WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return Envelope{}, ErrReportNotFound
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("loading report %s: %w", id, err)
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding report %s: %w", id, err)
	}
	return env, nil
}
