package db

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitialized is returned when no store is active, either because
	// Initialize was never called or because the fallback could not be opened.
	ErrNotInitialized = errors.New("database manager not initialized or without connection")

	// ErrNoRows is returned by Tx.Get when the query matched nothing.
	ErrNoRows = errors.New("no rows in result set")
)

// ConfigurationError reports missing primary connection parameters.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("primary database not configured: missing %s", strings.Join(e.Missing, ", "))
}

// ConnectivityError reports a primary that could not be reached in time.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("primary database unreachable: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// FatalStorageError reports that the fallback store could not be opened.
// The manager is left without a usable connection.
type FatalStorageError struct {
	Err error
}

func (e *FatalStorageError) Error() string {
	return fmt.Sprintf("fallback database unavailable: %v", e.Err)
}

func (e *FatalStorageError) Unwrap() error { return e.Err }
