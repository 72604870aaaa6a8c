package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"vanads/pkg/types"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateUninitialized State = iota
	StatePrimary
	StateFallback
)

func (s State) String() string {
	switch s {
	case StatePrimary:
		return "primary"
	case StateFallback:
		return "fallback"
	default:
		return "uninitialized"
	}
}

const defaultConnectTimeout = 10 * time.Second

// Manager owns the choice between the primary database and the local
// fallback. Every query in the application goes through it. The active
// store only changes while mu is held, so a caller never sees a manager
// whose pool is gone but whose fallback is not ready yet.
type Manager struct {
	config       *types.Config
	configSource func() (*types.Config, error)
	logger       *logrus.Logger

	dialPrimary  func(ctx context.Context, config *types.Config) (pool, error)
	openFallback func(ctx context.Context, path string) (*sql.DB, error)

	mu       sync.Mutex
	state    State
	primary  pool
	fallback *sql.DB
	fatalErr error
}

type Option func(*Manager)

// WithConfigSource makes every primary connection attempt reload its
// parameters, so a corrected environment is picked up by the next
// reconnect check without a restart.
func WithConfigSource(source func() (*types.Config, error)) Option {
	return func(m *Manager) {
		m.configSource = source
	}
}

func NewManager(config *types.Config, logger *logrus.Logger, opts ...Option) *Manager {
	m := &Manager{
		config:       config,
		logger:       logger,
		dialPrimary:  dialPostgres,
		openFallback: openSQLite,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Initialize establishes the first active store. A primary that is not
// configured or not reachable is logged and the fallback is used instead.
// Only a fallback that cannot be opened is returned as an error, and the
// manager then has no usable connection. Calls after a store has been
// established are no-ops.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateUninitialized {
		return nil
	}

	m.logger.Info("initializing database manager")

	err := m.connectPrimary(ctx)
	if err == nil {
		m.logger.Info("connected to primary database")
		return nil
	}

	m.logger.WithError(err).Warn("primary database unavailable, using fallback")

	return m.connectFallback(ctx)
}

// State reports the active store.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InTx checks out a connection from the active store, runs fn inside a
// transaction and commits when fn returns nil. The transaction is rolled
// back and the connection released on every other path, including panics.
func (m *Manager) InTx(ctx context.Context, fn func(tx Tx) error) error {
	c, state, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer c.release()

	tx, err := c.begin(ctx)
	if err != nil {
		m.logStorageError(err, state, "failed to begin transaction")
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.rollback(context.Background())
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.rollback(ctx); rbErr != nil {
			m.logStorageError(rbErr, state, "failed to roll back transaction")
		}
		if !errors.Is(err, ErrNoRows) {
			m.logStorageError(err, state, "failed to execute query")
		}
		return err
	}

	if err := tx.commit(ctx); err != nil {
		m.logStorageError(err, state, "failed to commit transaction")
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ReconnectCheck tries to move from the fallback back to the primary. It
// does nothing unless the fallback is active, or a failed fallback open has
// left the manager without any store. On success the fallback handle is
// closed and later callers get primary connections. Rows written to the
// fallback in the meantime stay there.
func (m *Manager) ReconnectCheck(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	stranded := m.state == StateUninitialized && m.fatalErr != nil
	if m.state != StateFallback && !stranded {
		return false
	}

	m.logger.Info("checking whether the primary database is back online")

	if err := m.connectPrimary(ctx); err != nil {
		m.logger.WithError(err).Info("primary database still unavailable")
		return false
	}

	if m.fallback != nil {
		if err := m.fallback.Close(); err != nil {
			m.logger.WithError(err).Warn("failed to close fallback database")
		}
		m.fallback = nil
	}

	m.logger.Info("reconnected to primary database")

	return true
}

// RunReconnectLoop calls ReconnectCheck every interval until ctx is done.
func (m *Manager) RunReconnectLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ReconnectCheck(ctx)
		}
	}
}

// Close releases both stores and returns the manager to its initial state.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.primary != nil {
		m.primary.close()
		m.primary = nil
	}
	if m.fallback != nil {
		err = m.fallback.Close()
		m.fallback = nil
	}
	m.state = StateUninitialized

	return err
}

// acquire is the acquire-or-failover primitive. A primary that fails to
// hand out a live connection is swapped for the fallback before the lock
// is released.
func (m *Manager) acquire(ctx context.Context) (conn, State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StatePrimary:
		acquireCtx, cancel := context.WithTimeout(ctx, m.connectTimeout())
		c, err := m.primary.acquire(acquireCtx)
		cancel()
		if err == nil {
			return c, StatePrimary, nil
		}

		// The caller gave up, the primary did not fail.
		if ctx.Err() != nil {
			return nil, StatePrimary, ctx.Err()
		}

		m.logger.WithError(err).Error("lost connection to primary database, switching to fallback")

		broken := m.primary
		m.primary = nil
		go broken.close()

		if err := m.connectFallback(ctx); err != nil {
			return nil, StateUninitialized, fmt.Errorf("%w: %w", ErrNotInitialized, err)
		}

		return &sqlConn{db: m.fallback}, StateFallback, nil

	case StateFallback:
		return &sqlConn{db: m.fallback}, StateFallback, nil
	}

	if m.fatalErr != nil {
		return nil, StateUninitialized, fmt.Errorf("%w: %w", ErrNotInitialized, m.fatalErr)
	}

	return nil, StateUninitialized, ErrNotInitialized
}

// connectPrimary must be called with mu held.
func (m *Manager) connectPrimary(ctx context.Context) error {
	config := m.config
	if m.configSource != nil {
		loaded, err := m.configSource()
		if err != nil {
			return fmt.Errorf("load primary config: %w", err)
		}
		config = loaded
	}

	if err := checkPrimaryConfig(config); err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.connectTimeout())
	defer cancel()

	p, err := m.dialPrimary(dialCtx, config)
	if err != nil {
		return &ConnectivityError{Err: err}
	}

	m.primary = p
	m.state = StatePrimary
	m.fatalErr = nil

	return nil
}

// connectFallback must be called with mu held.
func (m *Manager) connectFallback(ctx context.Context) error {
	if m.fallback == nil {
		db, err := m.openFallback(ctx, m.config.FallbackPath)
		if err != nil {
			m.state = StateUninitialized
			m.fatalErr = &FatalStorageError{Err: err}
			m.logger.WithError(err).WithField("path", m.config.FallbackPath).Error("failed to open fallback database")
			return m.fatalErr
		}
		m.fallback = db
	}

	m.state = StateFallback
	m.fatalErr = nil

	m.logger.WithField("path", m.config.FallbackPath).Info("fallback database ready")

	return nil
}

func (m *Manager) connectTimeout() time.Duration {
	if m.config.ConnectTimeout > 0 {
		return m.config.ConnectTimeout
	}
	return defaultConnectTimeout
}

func (m *Manager) logStorageError(err error, state State, msg string) {
	m.logger.WithError(err).WithField("store", state.String()).Error(msg)
}
