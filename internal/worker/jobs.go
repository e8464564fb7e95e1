package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/conreg/backend/internal/payments"
)

// Settler is the refund settlement pass.
type Settler interface {
	Run(ctx context.Context) (*payments.SettlementReport, error)
}

// Cleaner removes expired temporary uploads.
type Cleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

// SettleRefunds adapts a Settler to a periodic task.
func SettleRefunds(s Settler, logger *zap.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		report, err := s.Run(ctx)
		if err != nil {
			return err
		}
		if report != nil && !report.Empty() {
			logger.Info("refund settlement",
				zap.Int("processed", len(report.Processed)),
				zap.Int("failed", len(report.Failed)),
				zap.Int("due_soon", len(report.Soon)))
		}
		return nil
	}
}

// CleanupAvatars adapts a Cleaner to a periodic task.
func CleanupAvatars(c Cleaner, logger *zap.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		n, err := c.Cleanup(ctx)
		if n > 0 {
			logger.Info("temp avatars removed", zap.Int("count", n))
		}
		return err
	}
}
