// File: internal/reporting/zapsink.go
package reporting

import (
	"go.uber.org/zap"

	"github.com/tradehelm/kitelaunch/internal/tracker"
)

// ZapSink forwards events to a structured logger. Used for non-interactive
// runs (cron) where the console table is noise and the rotating log file is
// the record of truth.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps the given logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.Named("report")}
}

func (z *ZapSink) Emit(ev Event) {
	fields := []zap.Field{zap.String("account_id", ev.AccountID)}
	switch ev.Level {
	case LevelError:
		z.logger.Error(ev.Message, fields...)
	case LevelWarning:
		z.logger.Warn(ev.Message, fields...)
	default:
		z.logger.Info(ev.Message, fields...)
	}
}

func (z *ZapSink) Summary(report RunReport) {
	z.logger.Info("Run complete",
		zap.String("run_id", report.RunID),
		zap.Int("total", report.Summary.Total),
		zap.Int("succeeded", report.Summary.Succeeded),
		zap.Int("failed", report.Summary.Failed),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	for _, a := range report.Attempts {
		if a.Status == tracker.StatusFailed {
			z.logger.Warn("Attempt failed",
				zap.String("account_id", a.AccountID),
				zap.String("stage", a.Stage),
				zap.String("detail", a.ErrorDetail))
		}
	}
}
