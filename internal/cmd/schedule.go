package cmd

import (
	"context"
	"errors"

	"github.com/jimezsa/jobpilot/internal/auth"
	"github.com/jimezsa/jobpilot/internal/pipeline"
)

type ScheduleCmd struct {
	Cron      string `help:"Cron expression or descriptor such as \"@every 6h\"." default:"@every 6h"`
	Immediate bool   `help:"Also run once at startup." default:"true" negatable:""`
	Dir       string `help:"Directory for the stage artifacts." default:"." type:"path"`
	SearchOptions
}

func (c *ScheduleCmd) Run(ctx *Context) error {
	params := c.params(ctx)
	scheduleCtx, cancel := context.WithCancelCause(ctx.context())
	defer cancel(nil)

	job := func(runCtx context.Context) {
		report, err := runPipeline(runCtx, ctx, c.Dir, params)
		if err != nil {
			var cfgErr *auth.ConfigurationError
			if errors.As(err, &cfgErr) {
				// Every later run would fail the same way.
				cancel(err)
				return
			}
			ctx.Logger.Error().Err(err).Msg("scheduled run failed")
			return
		}
		if !ctx.JSONOutput {
			printRunReport(ctx, report)
		}
	}

	scheduler, err := pipeline.NewScheduler(c.Cron, job, ctx.Logger.With().Str("component", "scheduler").Logger())
	if err != nil {
		return err
	}
	ctx.UI.Infof("Running pipeline on schedule %q. Press Ctrl+C to stop.", c.Cron)
	if err := scheduler.Run(scheduleCtx, c.Immediate); err != nil {
		return err
	}

	if cause := context.Cause(scheduleCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}
