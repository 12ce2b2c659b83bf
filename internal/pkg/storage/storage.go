package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/001_init.sql
var schema string

var (
	ErrNotFound  = errors.New("not found")
	ErrAmbiguous = errors.New("more than one record matched")
)

func New(ctx context.Context, databaseURL string, logger *zap.SugaredLogger) (*Store, error) {
	pool, err := pgxpool.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.Connect: %w", err)
	}
	return &Store{conn: pool, logger: logger}, nil
}

type Store struct {
	conn   *pgxpool.Pool
	logger *zap.SugaredLogger
}

// Migrate applies the schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("conn.Exec(schema): %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *Store) Close() {
	s.conn.Close()
}
