package db

import (
	"context"
	"fmt"
	"time"

	"vanads/pkg/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func checkPrimaryConfig(config *types.Config) error {
	var missing []string
	if config.DBHost == "" {
		missing = append(missing, "DB_HOST")
	}
	if config.DBUser == "" {
		missing = append(missing, "DB_USER")
	}
	if config.DBPassword == "" {
		missing = append(missing, "DB_PASSWORD")
	}
	if config.DBName == "" {
		missing = append(missing, "DB_NAME")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

func poolConfig(config *types.Config) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig("")
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.ConnConfig.Host = config.DBHost
	poolConfig.ConnConfig.Port = config.DBPort
	poolConfig.ConnConfig.User = config.DBUser
	poolConfig.ConnConfig.Password = config.DBPassword
	poolConfig.ConnConfig.Database = config.DBName
	poolConfig.ConnConfig.Fallbacks = nil

	if config.DBSchema != "" {
		poolConfig.ConnConfig.RuntimeParams["search_path"] = config.DBSchema
	}

	if config.DBPoolSize > 0 {
		poolConfig.MaxConns = config.DBPoolSize
	}
	poolConfig.ConnConfig.ConnectTimeout = config.ConnectTimeout
	poolConfig.MaxConnIdleTime = 15 * time.Minute
	poolConfig.MaxConnLifetime = 45 * time.Minute

	return poolConfig, nil
}

// Connect opens the primary pool and proves it works by checking out and
// returning one connection. ctx bounds the whole attempt.
func Connect(ctx context.Context, config *types.Config) (*pgxpool.Pool, error) {
	poolConfig, err := poolConfig(config)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	conn.Release()

	return pool, nil
}

func dialPostgres(ctx context.Context, config *types.Config) (pool, error) {
	p, err := Connect(ctx, config)
	if err != nil {
		return nil, err
	}
	return &pgxPool{pool: p}, nil
}

// Migrate applies the schema to the primary database.
func Migrate(ctx context.Context, config *types.Config) error {
	if err := checkPrimaryConfig(config); err != nil {
		return err
	}

	pool, err := Connect(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	if config.DBSchema != "" {
		stmt := "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{config.DBSchema}.Sanitize()
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema %s: %w", config.DBSchema, err)
		}
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}
