package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "epdpage/internal/log"
)

// cronLogger routes cron's own messages through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}

// Schedule runs the pipeline on a standard five field cron spec until ctx
// is done. A tick that fires while a run is still going is skipped.
func (p *Pipeline) Schedule(ctx context.Context, spec string) error {
	l := cronLogger{}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := c.AddFunc(spec, func() {
		if err := p.Run(ctx); errors.Is(err, ErrBusy) {
			appLog.Info("pipeline: scheduled run skipped, another run is active")
		}
	}); err != nil {
		return fmt.Errorf("pipeline: schedule %q: %w", spec, err)
	}

	appLog.Info("pipeline: scheduler started", "spec", spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("pipeline: scheduler stopped")
	return nil
}
