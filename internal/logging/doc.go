// Package logging provides slog helpers used throughout the codebase.
//
// It defines the canonical attribute keys (operation, message_id, label,
// call-budget counters) so log output stays queryable, and a no-op logger
// that components fall back to when no logger is injected.
package logging
