// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// SetLogger replaces the logger used by repository and service helpers.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return logger.Load()
}

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{tableName: tableName}
}

func (l *RepoLogger) log(ctx context.Context, level slog.Level, msg, operation string, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
	}
	Logger().LogAttrs(ctx, level, msg, append(base, attrs...)...)
}

// LogCreate logs a repository create operation.
func (l *RepoLogger) LogCreate(ctx context.Context, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelDebug, "repository create", "create", attrs...)
}

// LogDelete logs a repository delete operation.
func (l *RepoLogger) LogDelete(ctx context.Context, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelDebug, "repository delete", "delete", attrs...)
}

// LogConflict logs a write that lost a uniqueness race and was treated as a no-op.
func (l *RepoLogger) LogConflict(ctx context.Context, operation string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelInfo, "repository write skipped on conflict", operation, attrs...)
}

// LogError logs a failed repository operation.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	l.log(ctx, slog.LevelError, "repository error", operation, slog.String("error", err.Error()))
}
