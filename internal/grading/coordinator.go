// Package grading scores jobs against a freelancer profile with a language
// model. A job whose scoring fails keeps a nil score and an explanation; it
// never aborts the batch.
package grading

import (
	"context"
	"fmt"
	"strings"

	"github.com/jimezsa/jobpilot/internal/llm"
	"github.com/jimezsa/jobpilot/internal/models"
	"github.com/jimezsa/jobpilot/internal/prompts"
	"github.com/jimezsa/jobpilot/internal/schemas"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	ReasonNoScore       = "Scoring failed or no score provided by LLM."
	reasonExceptionPref = "Exception during scoring: "
	reasonMissing       = "N/A"
)

type jobScores struct {
	Scores []jobScore `json:"scores"`
}

type jobScore struct {
	JobID     any    `json:"job_id"`
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

type Option func(*Coordinator)

// WithConcurrency scores up to n jobs at once. Output order is unchanged.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

type Coordinator struct {
	invoker     llm.Invoker
	model       string
	concurrency int
	logger      zerolog.Logger
}

func NewCoordinator(invoker llm.Invoker, model string, opts ...Option) *Coordinator {
	c := &Coordinator{invoker: invoker, model: model, concurrency: 1, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SystemPrompt returns the grading instructions for profile.
func SystemPrompt(profile string) string {
	return prompts.Format(prompts.MustGet(prompts.GradingFile, prompts.KeyScoreJobs), map[string]string{
		"Profile": profile,
	})
}

// UserMessage renders one job for evaluation.
func UserMessage(job models.Job) string {
	text := prompts.Format(prompts.MustGet(prompts.GradingFile, prompts.KeyJob), map[string]string{
		"Title":       job.Title,
		"Description": job.Description,
	})
	return "Evaluate this Job:\n\n" + strings.TrimSpace(text)
}

// ScoreJob grades a single job. It always returns a record with a non-empty
// Reasoning.
func (c *Coordinator) ScoreJob(ctx context.Context, job models.Job, profile string) models.ScoredJob {
	return c.score(ctx, job, SystemPrompt(profile))
}

func (c *Coordinator) score(ctx context.Context, job models.Job, system string) models.ScoredJob {
	out := models.ScoredJob{Job: job}
	log := c.logger.With().Str("job", job.DisplayTitle()).Logger()
	log.Info().Msg("grading job")

	var resp jobScores
	err := llm.InvokeJSON(ctx, c.invoker, llm.Request{
		SystemPrompt: system,
		UserMessage:  UserMessage(job),
		Model:        c.model,
		Schema:       schemas.JobScores,
	}, &resp)
	if err != nil {
		log.Error().Err(err).Msg("error scoring job")
		out.Reasoning = reasonExceptionPref + err.Error()
		return out
	}
	if len(resp.Scores) == 0 {
		log.Warn().Msg("could not retrieve a valid score for job")
		out.Reasoning = ReasonNoScore
		return out
	}

	first := resp.Scores[0]
	score := first.Score
	out.Score = &score
	out.Reasoning = strings.TrimSpace(first.Reasoning)
	if out.Reasoning == "" {
		out.Reasoning = reasonMissing
	}
	log.Debug().Int("score", score).Msg("job graded")
	return out
}

// ScoreAll grades every job and returns exactly one record per input, in
// input order. The only error is cancellation of ctx.
func (c *Coordinator) ScoreAll(ctx context.Context, jobs []models.Job, profile string) ([]models.ScoredJob, error) {
	system := SystemPrompt(profile)
	out := make([]models.ScoredJob, len(jobs))

	if c.concurrency <= 1 {
		for i, job := range jobs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = c.score(ctx, job, system)
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = c.score(gctx, job, system)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("grading interrupted: %w", err)
	}
	return out, nil
}
