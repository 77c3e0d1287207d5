package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jimezsa/jobpilot/internal/auth"
	"github.com/jimezsa/jobpilot/internal/models"
	"github.com/rs/zerolog"
)

// StageIncompleteError reports a stage that did not produce its artifact.
type StageIncompleteError struct {
	Stage    string
	Artifact string
	Err      error
}

func (e *StageIncompleteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %s incomplete: %s not produced: %v", e.Stage, e.Artifact, e.Err)
	}
	return fmt.Sprintf("stage %s incomplete: %s not produced", e.Stage, e.Artifact)
}

func (e *StageIncompleteError) Unwrap() error { return e.Err }

// RunReport summarizes one orchestrated run. Halted is set when a stage did
// not produce its artifact; later stages were then not started.
type RunReport struct {
	RunID  string
	Fetch  FetchReport
	Grade  GradeReport
	Apply  ApplyReport
	Halted *StageIncompleteError
}

// Orchestrator chains fetch, grade and apply through fixed artifact names in Dir.
type Orchestrator struct {
	Runner *Runner
	Dir    string
	Params models.SearchParams
	Logger zerolog.Logger
}

func (o *Orchestrator) path(name string) string {
	if o.Dir == "" {
		return name
	}
	return filepath.Join(o.Dir, name)
}

// Run executes the three stages. Configuration failures and cancellation are
// returned; any other stage failure halts the chain, is recorded in
// RunReport.Halted and leaves earlier artifacts untouched.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString()}
	logger := o.Logger.With().Str("run_id", report.RunID).Logger()
	runner := *o.Runner
	runner.Logger = logger

	fetched, graded, applications := o.path(FetchedArtifact), o.path(GradedArtifact), o.path(ApplicationsArtifact)
	logger.Info().Msg("pipeline started")

	stages := []struct {
		name     string
		artifact string
		run      func(stageLogger zerolog.Logger) error
		// idle reports a successful stage that had nothing to write.
		idle     func() bool
	}{
		{"fetch", fetched, func(l zerolog.Logger) error {
			runner.Logger = l
			var err error
			report.Fetch, err = runner.Fetch(ctx, o.Params, fetched)
			return err
		}, nil},
		{"grade", graded, func(l zerolog.Logger) error {
			runner.Logger = l
			var err error
			report.Grade, err = runner.Grade(ctx, fetched, graded)
			return err
		}, nil},
		{"apply", applications, func(l zerolog.Logger) error {
			runner.Logger = l
			var err error
			report.Apply, err = runner.Apply(ctx, graded, applications)
			return err
		}, func() bool { return report.Apply.Eligible == 0 }},
	}

	for _, stage := range stages {
		stageLogger := logger.With().Str("stage", stage.name).Logger()
		start := time.Now()

		err := stage.run(stageLogger)
		if err != nil && isFatal(ctx, err) {
			stageLogger.Error().Err(err).Msg("stage failed")
			return report, err
		}
		if err == nil && stage.idle != nil && stage.idle() {
			stageLogger.Info().Msg("stage had nothing to write")
			continue
		}
		if err == nil {
			err = verifyArtifact(stage.artifact, start)
		}
		if err != nil {
			report.Halted = &StageIncompleteError{Stage: stage.name, Artifact: stage.artifact, Err: err}
			stageLogger.Error().Err(report.Halted).Msg("halting pipeline")
			return report, nil
		}
		stageLogger.Info().Dur("elapsed", time.Since(start)).Msg("stage complete")
	}

	logger.Info().Msg("pipeline finished")
	return report, nil
}

func isFatal(ctx context.Context, err error) bool {
	var cfgErr *auth.ConfigurationError
	return errors.As(err, &cfgErr) || ctx.Err() != nil
}

// verifyArtifact requires path to exist and to have been written during
// the stage, so a file left by an earlier run does not count.
func verifyArtifact(path string, since time.Time) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.ModTime().Before(since.Truncate(time.Second)) {
		return fmt.Errorf("%s was not updated by this run", path)
	}
	return nil
}
