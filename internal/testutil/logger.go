package testutil

import (
	"io"
	"log/slog"
)

// NopLogger returns a logger that discards everything. Handed to services,
// the hub and storage in tests so assertions stay free of log noise.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
