package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"vanads/internal/db"
	"vanads/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

var (
	dotenvMu sync.Mutex
	// dotenvKeys are the variables that came from .env rather than the
	// process environment. Only those are refreshed on reload.
	dotenvKeys = map[string]bool{}
)

// loadConfig reads .env, if present, and then the environment. It runs
// again before every primary reconnect attempt, so a corrected .env is
// picked up without a restart.
func loadConfig() (*types.Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}

	c := new(types.Config)
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	return c, nil
}

func loadDotenv() error {
	values, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read .env: %w", err)
	}

	dotenvMu.Lock()
	defer dotenvMu.Unlock()

	for key, value := range values {
		if _, set := os.LookupEnv(key); set && !dotenvKeys[key] {
			continue
		}
		dotenvKeys[key] = true
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s from .env: %w", key, err)
		}
	}

	return nil
}

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	config, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}

	return config, nil
}

// openManager initializes the connection manager, falling back to the
// local store when the primary is unavailable.
func openManager(ctx context.Context, cfg *types.Config, logger *logrus.Logger) (*db.Manager, error) {
	manager := db.NewManager(cfg, logger, db.WithConfigSource(loadConfig))
	if err := manager.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return manager, nil
}
