package db

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vanads/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/sirupsen/logrus"
)

type fakePool struct {
	mu         sync.Mutex
	acquireErr error
	acquired   int
	released   int
	committed  int
	rolledBack int
	closed     chan struct{}
}

func newFakePool() *fakePool {
	return &fakePool{closed: make(chan struct{})}
}

func (p *fakePool) acquire(ctx context.Context) (conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.acquired++
	return &fakeConn{pool: p}, nil
}

func (p *fakePool) close() {
	close(p.closed)
}

func (p *fakePool) setAcquireErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquireErr = err
}

func (p *fakePool) counts() (acquired, released, committed, rolledBack int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired, p.released, p.committed, p.rolledBack
}

type fakeConn struct {
	pool *fakePool
}

func (c *fakeConn) begin(context.Context) (txn, error) { return &fakeTx{pool: c.pool}, nil }

func (c *fakeConn) release() {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	c.pool.released++
}

type fakeTx struct {
	pool *fakePool
}

func (t *fakeTx) Exec(context.Context, string, ...any) (int64, error) { return 0, nil }
func (t *fakeTx) Get(context.Context, any, string, ...any) error { return ErrNoRows }
func (t *fakeTx) Select(context.Context, any, string, ...any) error { return nil }
func (t *fakeTx) Builder() sq.StatementBuilderType { return dollarBuilder }
func (t *fakeTx) Store() State { return StatePrimary }

func (t *fakeTx) commit(context.Context) error {
	t.pool.mu.Lock()
	defer t.pool.mu.Unlock()
	t.pool.committed++
	return nil
}

func (t *fakeTx) rollback(context.Context) error {
	t.pool.mu.Lock()
	defer t.pool.mu.Unlock()
	t.pool.rolledBack++
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fallbackConfig(t *testing.T) *types.Config {
	t.Helper()
	return &types.Config{
		FallbackPath:   filepath.Join(t.TempDir(), "fallback.db"),
		ConnectTimeout: time.Second,
	}
}

func primaryConfig(t *testing.T) *types.Config {
	t.Helper()
	config := fallbackConfig(t)
	config.DBHost = "db.internal"
	config.DBUser = "vanads"
	config.DBPassword = "secret"
	config.DBName = "campaigns"
	return config
}

func newTestManager(t *testing.T, config *types.Config, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(config, testLogger(), opts...)
	m.dialPrimary = func(context.Context, *types.Config) (pool, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	t.Cleanup(func() {
		_ = m.Close()
	})
	return m
}

func countCampaigns(t *testing.T, m *Manager) (int, State) {
	t.Helper()
	var (
		count int
		store State
	)
	err := m.InTx(context.Background(), func(tx Tx) error {
		store = tx.Store()
		query, args, err := tx.Builder().Select("COUNT(*)").From("campaigns").ToSql()
		if err != nil {
			return err
		}
		return tx.Get(context.Background(), &count, query, args...)
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	return count, store
}

func TestInitializeMissingConfigUsesFallback(t *testing.T) {
	m := newTestManager(t, fallbackConfig(t))

	dialed := false
	m.dialPrimary = func(context.Context, *types.Config) (pool, error) {
		dialed = true
		return newFakePool(), nil
	}

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if dialed {
		t.Fatal("primary dialed without configuration")
	}
	if got := m.State(); got != StateFallback {
		t.Fatalf("state = %s, want fallback", got)
	}

	if _, store := countCampaigns(t, m); store != StateFallback {
		t.Fatalf("tx store = %s, want fallback", store)
	}
}

func TestInitializeConcurrentLandsInFallback(t *testing.T) {
	m := newTestManager(t, fallbackConfig(t))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Initialize(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Initialize: %v", err)
		}
	}
	if got := m.State(); got != StateFallback {
		t.Fatalf("state = %s, want fallback", got)
	}
}

func TestInitializeUsesPrimary(t *testing.T) {
	m := newTestManager(t, primaryConfig(t))
	p := newFakePool()
	m.dialPrimary = func(ctx context.Context, config *types.Config) (pool, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("primary dial without a deadline")
		}
		return p, nil
	}

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := m.State(); got != StatePrimary {
		t.Fatalf("state = %s, want primary", got)
	}

	err := m.InTx(context.Background(), func(tx Tx) error {
		if tx.Store() != StatePrimary {
			t.Errorf("tx store = %s, want primary", tx.Store())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	acquired, released, committed, rolledBack := p.counts()
	if acquired != 1 || released != 1 || committed != 1 || rolledBack != 0 {
		t.Fatalf("acquired=%d released=%d committed=%d rolledBack=%d", acquired, released, committed, rolledBack)
	}
}

func TestInitializeUnreachablePrimaryUsesFallback(t *testing.T) {
	m := newTestManager(t, primaryConfig(t))

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := m.State(); got != StateFallback {
		t.Fatalf("state = %s, want fallback", got)
	}
}

func TestInTxRollsBackAndReleasesOnError(t *testing.T) {
	m := newTestManager(t, primaryConfig(t))
	p := newFakePool()
	m.dialPrimary = func(context.Context, *types.Config) (pool, error) { return p, nil }

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	boom := errors.New("boom")
	err := m.InTx(context.Background(), func(Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic was swallowed")
			}
		}()
		_ = m.InTx(context.Background(), func(Tx) error { panic("query blew up") })
	}()

	_, released, committed, rolledBack := p.counts()
	if released != 2 || committed != 0 || rolledBack != 2 {
		t.Fatalf("released=%d committed=%d rolledBack=%d", released, committed, rolledBack)
	}
}

func TestInTxRollbackDiscardsFallbackWrites(t *testing.T) {
	m := newTestManager(t, fallbackConfig(t))
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	boom := errors.New("boom")
	err := m.InTx(context.Background(), func(tx Tx) error {
		query, args, err := tx.Builder().
			Insert("campaigns").
			Columns("name", "client", "access_code").
			Values("Back to school", "Acme", "ZZ99ZZ99").
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(context.Background(), query, args...); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}

	if count, _ := countCampaigns(t, m); count != 0 {
		t.Fatalf("campaigns = %d after rollback, want 0", count)
	}
}

func TestAcquireFailsOverWhenPrimaryLost(t *testing.T) {
	m := newTestManager(t, primaryConfig(t))
	p := newFakePool()
	m.dialPrimary = func(context.Context, *types.Config) (pool, error) { return p, nil }

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	p.setAcquireErr(errors.New("server closed the connection unexpectedly"))

	if _, store := countCampaigns(t, m); store != StateFallback {
		t.Fatalf("tx store = %s, want fallback", store)
	}
	if got := m.State(); got != StateFallback {
		t.Fatalf("state = %s, want fallback", got)
	}

	select {
	case <-p.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("broken primary pool was not closed")
	}
}

func TestAcquireCanceledContextKeepsPrimary(t *testing.T) {
	m := newTestManager(t, primaryConfig(t))
	m.dialPrimary = func(context.Context, *types.Config) (pool, error) { return newFakePool(), nil }

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.InTx(ctx, func(Tx) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("InTx error = %v, want context.Canceled", err)
	}
	if got := m.State(); got != StatePrimary {
		t.Fatalf("state = %s, want primary", got)
	}
}

func TestFallbackFailureIsFatal(t *testing.T) {
	m := newTestManager(t, fallbackConfig(t))
	m.openFallback = func(context.Context, string) (*sql.DB, error) {
		return nil, errors.New("disk full")
	}

	err := m.Initialize(context.Background())
	var fatal *FatalStorageError
	if !errors.As(err, &fatal) {
		t.Fatalf("Initialize error = %v, want FatalStorageError", err)
	}
	if got := m.State(); got != StateUninitialized {
		t.Fatalf("state = %s, want uninitialized", got)
	}

	err = m.InTx(context.Background(), func(Tx) error { return nil })
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("InTx error = %v, want ErrNotInitialized", err)
	}
	if !errors.As(err, &fatal) {
		t.Fatalf("InTx error = %v, want wrapped FatalStorageError", err)
	}
}

func TestInTxBeforeInitialize(t *testing.T) {
	m := newTestManager(t, fallbackConfig(t))

	err := m.InTx(context.Background(), func(Tx) error { return nil })
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("InTx error = %v, want ErrNotInitialized", err)
	}
}

func TestReconnectCheckRestoresPrimary(t *testing.T) {
	base := fallbackConfig(t)

	var (
		mu      sync.Mutex
		current = *base
	)
	source := func() (*types.Config, error) {
		mu.Lock()
		defer mu.Unlock()
		c := current
		return &c, nil
	}

	m := newTestManager(t, base, WithConfigSource(source))
	p := newFakePool()
	m.dialPrimary = func(context.Context, *types.Config) (pool, error) { return p, nil }

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := m.State(); got != StateFallback {
		t.Fatalf("state = %s, want fallback", got)
	}

	if m.ReconnectCheck(context.Background()) {
		t.Fatal("reconnected while primary is still unconfigured")
	}

	fallback := m.fallback

	mu.Lock()
	current.DBHost = "db.internal"
	current.DBUser = "vanads"
	current.DBPassword = "secret"
	current.DBName = "campaigns"
	mu.Unlock()

	if !m.ReconnectCheck(context.Background()) {
		t.Fatal("ReconnectCheck did not reconnect")
	}
	if got := m.State(); got != StatePrimary {
		t.Fatalf("state = %s, want primary", got)
	}
	if err := fallback.Ping(); err == nil {
		t.Fatal("fallback handle still open after reconnect")
	}

	if _, _, err := m.acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if acquired, _, _, _ := p.counts(); acquired != 1 {
		t.Fatalf("primary acquired = %d, want 1", acquired)
	}
}

func TestReconnectCheckRecoversAfterFailedFailover(t *testing.T) {
	m := newTestManager(t, primaryConfig(t))
	lost := newFakePool()
	m.dialPrimary = func(context.Context, *types.Config) (pool, error) { return lost, nil }

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	m.openFallback = func(context.Context, string) (*sql.DB, error) {
		return nil, errors.New("disk full")
	}
	lost.setAcquireErr(errors.New("server closed the connection unexpectedly"))

	err := m.InTx(context.Background(), func(Tx) error { return nil })
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("InTx error = %v, want ErrNotInitialized", err)
	}
	if got := m.State(); got != StateUninitialized {
		t.Fatalf("state = %s, want uninitialized", got)
	}

	restored := newFakePool()
	m.dialPrimary = func(context.Context, *types.Config) (pool, error) { return restored, nil }

	if !m.ReconnectCheck(context.Background()) {
		t.Fatal("ReconnectCheck did not recover the primary")
	}
	if got := m.State(); got != StatePrimary {
		t.Fatalf("state = %s, want primary", got)
	}
	if err := m.InTx(context.Background(), func(Tx) error { return nil }); err != nil {
		t.Fatalf("InTx after recovery: %v", err)
	}
	if _, _, committed, _ := restored.counts(); committed != 1 {
		t.Fatalf("committed on restored primary = %d, want 1", committed)
	}
}

func TestReconnectCheckNoopBeforeInitialize(t *testing.T) {
	m := newTestManager(t, primaryConfig(t))

	dials := 0
	m.dialPrimary = func(context.Context, *types.Config) (pool, error) {
		dials++
		return newFakePool(), nil
	}

	if m.ReconnectCheck(context.Background()) {
		t.Fatal("ReconnectCheck connected a manager that was never initialized")
	}
	if dials != 0 {
		t.Fatalf("dials = %d, want 0", dials)
	}
}

func TestReconnectCheckNoopOnPrimary(t *testing.T) {
	m := newTestManager(t, primaryConfig(t))

	dials := 0
	m.dialPrimary = func(context.Context, *types.Config) (pool, error) {
		dials++
		return newFakePool(), nil
	}

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if m.ReconnectCheck(context.Background()) {
		t.Fatal("ReconnectCheck reported a reconnect while on primary")
	}
	if dials != 1 {
		t.Fatalf("dials = %d, want 1", dials)
	}
}

func TestReconnectCheckPrimaryStillDown(t *testing.T) {
	m := newTestManager(t, primaryConfig(t))

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if m.ReconnectCheck(context.Background()) {
		t.Fatal("ReconnectCheck reconnected to an unreachable primary")
	}
	if got := m.State(); got != StateFallback {
		t.Fatalf("state = %s, want fallback", got)
	}
	if _, store := countCampaigns(t, m); store != StateFallback {
		t.Fatalf("tx store = %s, want fallback", store)
	}
}

func TestCheckPrimaryConfig(t *testing.T) {
	err := checkPrimaryConfig(&types.Config{DBHost: "db", DBUser: "u"})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want ConfigurationError", err)
	}
	if len(cfgErr.Missing) != 2 || cfgErr.Missing[0] != "DB_PASSWORD" || cfgErr.Missing[1] != "DB_NAME" {
		t.Fatalf("missing = %v", cfgErr.Missing)
	}

	if err := checkPrimaryConfig(primaryConfig(t)); err != nil {
		t.Fatalf("complete config rejected: %v", err)
	}
}
