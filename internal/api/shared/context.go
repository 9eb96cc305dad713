package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"
)

// ContextKey is the type of keys stored in request contexts.
// A distinct type keeps them from colliding with keys set by other packages.
type ContextKey string

// Context keys and trace ID sizing
const (
	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of bytes used to generate the trace ID
	TraceIDLength = 16 // 32 hex characters
)

// SetTraceID adds a fresh trace ID to the context.
// The ID is echoed in error responses and attached to request logs, so a
// client-reported error can be matched to its log lines.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// generateTraceID creates a random 32-character hex trace ID.
// If crypto/rand fails it falls back to a time-based ID, never a static value.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	n, err := rand.Read(b)
	if err != nil || n != TraceIDLength {
		slog.Error("failed to generate secure random trace ID",
			"error", err,
			"bytes_read", n,
			"fallback", "time-based generation")
		return fallbackTraceID(time.Now())
	}
	return hex.EncodeToString(b)
}

// fallbackTraceID builds a trace ID from now; it is only used when
// crypto/rand fails.
func fallbackTraceID(now time.Time) string {
	b := make([]byte, TraceIDLength)
	// Bytes 0-7: nanosecond timestamp for chronological uniqueness
	binary.BigEndian.PutUint64(b[:8], uint64(now.UnixNano()))
	// Bytes 8-11: sub-second part, distinguishes IDs within one second
	binary.BigEndian.PutUint32(b[8:12], uint32(now.Nanosecond()))
	// Bytes 12-15: seconds since epoch
	binary.BigEndian.PutUint32(b[12:16], uint32(now.Unix()))
	return hex.EncodeToString(b)
}
