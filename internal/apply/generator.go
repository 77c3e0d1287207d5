// Package apply prepares application materials for well-scored jobs.
package apply

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jimezsa/jobpilot/internal/llm"
	"github.com/jimezsa/jobpilot/internal/models"
	"github.com/jimezsa/jobpilot/internal/prompts"
	"github.com/jimezsa/jobpilot/internal/schemas"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultThreshold is the inclusive minimum score for an application.
const DefaultThreshold = 7.0

// Skip records why a job was not eligible.
type Skip struct {
	Job    models.ScoredJob
	Reason string
}

// Eligible splits jobs into those scoring at least threshold and the rest.
// A score read from an artifact is judged by its raw cell, so "6.999" is
// below 7 and "abc" is invalid. Missing scores are never eligible.
func Eligible(jobs []models.ScoredJob, threshold float64) ([]models.ScoredJob, []Skip) {
	var (
		eligible []models.ScoredJob
		skipped  []Skip
	)
	for _, job := range jobs {
		score, reason, ok := scoreOf(job)
		if !ok {
			skipped = append(skipped, Skip{Job: job, Reason: reason})
			continue
		}
		if score < threshold {
			skipped = append(skipped, Skip{Job: job, Reason: "low score: " + formatScore(score)})
			continue
		}
		eligible = append(eligible, job)
	}
	return eligible, skipped
}

// formatScore keeps one decimal on whole numbers, so 5 reads "5.0" and 6.999
// stays "6.999".
func formatScore(score float64) string {
	if score == math.Trunc(score) {
		return strconv.FormatFloat(score, 'f', 1, 64)
	}
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func scoreOf(job models.ScoredJob) (float64, string, bool) {
	raw := strings.TrimSpace(job.RawScore)
	if raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Sprintf("invalid score format: %q", raw), false
		}
		return f, "", true
	}
	if job.Score != nil {
		return float64(*job.Score), "", true
	}
	return 0, "missing score", false
}

type Option func(*Generator)

// WithConcurrency prepares up to n applications at once. Output order is unchanged.
func WithConcurrency(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

type Generator struct {
	invoker     llm.Invoker
	model       string
	concurrency int
	logger      zerolog.Logger
}

func NewGenerator(invoker llm.Invoker, model string, opts ...Option) *Generator {
	g := &Generator{invoker: invoker, model: model, concurrency: 1, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type coverLetter struct {
	Letter string `json:"letter"`
}

type callScript struct {
	Script string `json:"script"`
}

// Generate runs the three chained calls for one job: profile analysis, cover
// letter and interview preparation. Any failure aborts this job only.
func (g *Generator) Generate(ctx context.Context, job models.Job, profile string) (models.Application, error) {
	log := g.logger.With().Str("job", job.DisplayTitle()).Logger()
	description := job.Description

	log.Info().Msg("analyzing profile for job")
	analysis, err := g.invoker.Invoke(ctx, llm.Request{
		SystemPrompt: systemPrompt(prompts.KeyProfileAnalyzer, profile),
		UserMessage:  description,
		Model:        g.model,
	})
	if err != nil {
		return models.Application{}, fmt.Errorf("analyze profile: %w", err)
	}
	analysis = strings.TrimSpace(analysis)

	log.Info().Msg("generating cover letter for job")
	var letter coverLetter
	if err := llm.InvokeJSON(ctx, g.invoker, llm.Request{
		SystemPrompt: systemPrompt(prompts.KeyCoverLetter, analysis),
		UserMessage:  "Write a cover letter for the job described below:\n\n" + description,
		Model:        g.model,
		Schema:       schemas.CoverLetter,
	}, &letter); err != nil {
		return models.Application{}, fmt.Errorf("cover letter: %w", err)
	}
	letter.Letter = strings.TrimSpace(letter.Letter)
	if letter.Letter == "" {
		return models.Application{}, errors.New("cover letter: empty letter")
	}

	log.Info().Msg("generating interview preparation for job")
	var script callScript
	if err := llm.InvokeJSON(ctx, g.invoker, llm.Request{
		SystemPrompt: systemPrompt(prompts.KeyInterviewPreparation, analysis),
		UserMessage:  "Create preparation for the job described below:\n\n" + description,
		Model:        g.model,
		Schema:       schemas.CallScript,
	}, &script); err != nil {
		return models.Application{}, fmt.Errorf("interview preparation: %w", err)
	}
	script.Script = strings.TrimSpace(script.Script)
	if script.Script == "" {
		return models.Application{}, errors.New("interview preparation: empty script")
	}

	return models.Application{
		JobTitle:             job.Title,
		JobDescription:       description,
		CoverLetter:          letter.Letter,
		InterviewPreparation: script.Script,
	}, nil
}

// GenerateAll prepares applications for jobs, omitting those that fail. The
// result keeps input order. The only error is cancellation of ctx.
func (g *Generator) GenerateAll(ctx context.Context, jobs []models.ScoredJob, profile string) ([]models.Application, error) {
	results := make([]*models.Application, len(jobs))
	run := func(ctx context.Context, i int) {
		job := jobs[i].Job
		g.logger.Info().Str("job", job.DisplayTitle()).Msg("preparing application for eligible job")
		app, err := g.Generate(ctx, job, profile)
		if err != nil {
			g.logger.Error().Err(err).Str("job", job.DisplayTitle()).Msg("error preparing application")
			return
		}
		results[i] = &app
	}

	if g.concurrency <= 1 {
		for i := range jobs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			run(ctx, i)
		}
	} else {
		eg, egctx := errgroup.WithContext(ctx)
		eg.SetLimit(g.concurrency)
		for i := range jobs {
			eg.Go(func() error {
				if err := egctx.Err(); err != nil {
					return err
				}
				run(egctx, i)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, fmt.Errorf("application preparation interrupted: %w", err)
		}
	}

	apps := make([]models.Application, 0, len(jobs))
	for _, app := range results {
		if app != nil {
			apps = append(apps, *app)
		}
	}
	return apps, nil
}

func systemPrompt(key, profile string) string {
	return prompts.Format(prompts.MustGet(prompts.ApplicationsFile, key), map[string]string{
		"Profile": profile,
	})
}
