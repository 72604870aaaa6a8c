package testsupport

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"vanads/pkg/types"

	"github.com/sirupsen/logrus"
)

// NewConfig returns a config with no primary database, a fallback file and
// an upload root inside the test's temp dir.
func NewConfig(t testing.TB) *types.Config {
	t.Helper()

	dir := t.TempDir()
	return &types.Config{
		Environment:       "test",
		DBPort:            5432,
		DBSchema:          "vanads",
		ConnectTimeout:    time.Second,
		ReconnectInterval: time.Minute,
		FallbackPath:      filepath.Join(dir, "fallback.db"),
		UploadRoot:        filepath.Join(dir, "uploads"),
		MaxUploadBytes:    1 << 20,
	}
}

// Logger returns a logger that discards everything.
func Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
