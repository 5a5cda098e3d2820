// Package testutils holds shared helpers for tests that need configuration
// without a real environment.
package testutils

import (
	"testing"
	"time"

	"github.com/nfrund/projecthub/internal/config"
)

// ConfigForTests returns a config.Provider with deterministic values and a
// short autosave interval, so server-level tests never read the environment
// or reach a database.
func ConfigForTests(t *testing.T) config.Provider {
	t.Helper()

	return &config.Config{
		Addr:             "127.0.0.1:0",
		SessionSecret:    "test-session-secret",
		DBUrl:            "ws://127.0.0.1:8000/rpc",
		DBUser:           "root",
		DBPass:           "root",
		DBNs:             "test",
		DBDb:             "test",
		AutosaveInterval: 50 * time.Millisecond,
	}
}
