// Package oplog adapts the assignment service's operation callbacks onto zap.
package oplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/verdantlab/grove/pkg/grove"
)

// ZapLogger implements grove.OperationLogger over a zap.Logger.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger wraps logger; a nil logger degrades to a no-op.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger}
}

// LogOperation records one assignment operation outcome.
func (adapter *ZapLogger) LogOperation(_ context.Context, entry grove.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.LotID.String() != "" {
		fields = append(fields, zap.String("lot_id", entry.LotID.String()))
	}
	if entry.TreeID.String() != "" {
		fields = append(fields, zap.String("tree_id", entry.TreeID.String()))
	}
	if entry.OperatorID.String() != "" {
		fields = append(fields, zap.String("operator_id", entry.OperatorID.String()))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		adapter.logger.Warn("assignment operation", fields...)
		return
	}
	adapter.logger.Info("assignment operation", fields...)
}
