package observability

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
)

// FlushTelemetry flushes log buffers before process exit. Metrics are pull-based
// and need no flush. Sync errors from terminals (EINVAL, ENOTTY) are ignored.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if logger == nil {
		return nil
	}
	if err := logger.Sync(); err != nil {
		if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
			return nil
		}
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}
