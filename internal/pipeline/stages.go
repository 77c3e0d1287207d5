// Package pipeline runs the fetch, grade and apply stages over CSV and
// Markdown artifacts.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jimezsa/jobpilot/internal/apply"
	"github.com/jimezsa/jobpilot/internal/export"
	"github.com/jimezsa/jobpilot/internal/models"
	"github.com/jimezsa/jobpilot/internal/seen"
	"github.com/jimezsa/jobpilot/internal/upwork"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	FetchedArtifact      = "fetched_jobs.csv"
	GradedArtifact       = "graded_jobs.csv"
	ApplicationsArtifact = "applications.md"

	NoProfile = "No profile provided."
)

// Searcher returns one page of raw postings. *upwork.Client implements it.
type Searcher interface {
	Search(ctx context.Context, params models.SearchParams) (*upwork.SearchResult, error)
}

// Scorer grades a batch. *grading.Coordinator implements it.
type Scorer interface {
	ScoreAll(ctx context.Context, jobs []models.Job, profile string) ([]models.ScoredJob, error)
}

// Preparer writes application materials. *apply.Generator implements it.
type Preparer interface {
	GenerateAll(ctx context.Context, jobs []models.ScoredJob, profile string) ([]models.Application, error)
}

// Runner holds the collaborators of the three stages. A stage only needs
// the fields it uses: Fetch needs Searcher, Grade needs Scorer, Apply needs
// Preparer. A nil Gate disables deduplication.
type Runner struct {
	Searcher    Searcher
	Gate        seen.Gate
	Scorer      Scorer
	Preparer    Preparer
	ProfilePath string
	Threshold   float64
	Logger      zerolog.Logger
	Now         func() time.Time
}

type FetchReport struct {
	Received   int
	Duplicates int
	Dropped    int
	Written    int
	Recorded   int
	// RefreshedToken is set when the access token was renewed during the call.
	RefreshedToken *oauth2.Token `json:"-"`
}

type GradeReport struct {
	Read   int
	Scored int
	Failed int
}

type ApplyReport struct {
	Read     int
	Eligible int
	Skipped  int
	Prepared int
}

// Fetch searches once, drops already-seen and malformed records, writes the
// remaining jobs to out and then marks them seen. No file is written when no
// job survives.
func (r *Runner) Fetch(ctx context.Context, params models.SearchParams, out string) (FetchReport, error) {
	var report FetchReport
	if r.Searcher == nil {
		return report, errors.New("fetch stage has no searcher")
	}

	r.Logger.Info().Str("output", out).Msg("fetching jobs")
	result, err := r.Searcher.Search(ctx, params)
	if err != nil {
		return report, err
	}
	report.RefreshedToken = result.RefreshedToken
	report.Received = len(result.Records)

	jobs := make([]models.Job, 0, len(result.Records))
	batch := make(map[string]struct{}, len(result.Records))
	for _, raw := range result.Records {
		if strings.TrimSpace(raw.ID) == "" {
			r.Logger.Warn().Str("title", raw.Title).Msg("skipping job with no id")
			report.Dropped++
			continue
		}

		key := upwork.DedupKey(raw.ID)
		if _, dup := batch[key]; dup {
			report.Duplicates++
			continue
		}
		batch[key] = struct{}{}

		if r.Gate != nil {
			exists, err := seen.Contains(ctx, r.Gate, key)
			if err != nil {
				return report, fmt.Errorf("dedup check: %w", err)
			}
			if exists {
				r.Logger.Debug().Str("job", raw.Title).Msg("skipping already seen job")
				report.Duplicates++
				continue
			}
		}

		job, err := upwork.MapJob(raw)
		if err != nil {
			r.Logger.Warn().Err(err).Str("title", raw.Title).Msg("skipping malformed job")
			report.Dropped++
			continue
		}
		jobs = append(jobs, job)
	}

	if len(jobs) == 0 {
		r.Logger.Info().
			Int("received", report.Received).
			Int("duplicates", report.Duplicates).
			Msg("no new jobs to write")
		return report, nil
	}

	if err := export.SaveJobs(out, jobs); err != nil {
		return report, fmt.Errorf("write %s: %w", out, err)
	}
	report.Written = len(jobs)
	r.Logger.Info().Int("count", report.Written).Str("output", out).Msg("saved fetched jobs")

	if r.Gate != nil {
		stats, err := seen.Record(ctx, r.Gate, jobs)
		report.Recorded = stats.Added
		if err != nil {
			r.Logger.Warn().Err(err).Msg("could not mark fetched jobs as seen")
		}
	}
	return report, nil
}

// Grade scores every job in the fetch artifact at in and writes the graded
// artifact to out. An empty input writes nothing.
func (r *Runner) Grade(ctx context.Context, in, out string) (GradeReport, error) {
	var report GradeReport
	if r.Scorer == nil {
		return report, errors.New("grade stage has no scorer")
	}

	r.Logger.Info().Str("input", in).Str("output", out).Msg("grading jobs")
	jobs, err := export.LoadJobs(in)
	if err != nil {
		return report, fmt.Errorf("read input csv: %w", err)
	}
	report.Read = len(jobs)
	if len(jobs) == 0 {
		r.Logger.Warn().Str("input", in).Msg("no jobs found in input csv")
		return report, nil
	}

	scored, err := r.Scorer.ScoreAll(ctx, jobs, r.profile())
	if err != nil {
		return report, err
	}
	for _, job := range scored {
		if job.Score != nil {
			report.Scored++
		} else {
			report.Failed++
		}
	}

	if err := export.SaveScored(out, scored); err != nil {
		return report, fmt.Errorf("write %s: %w", out, err)
	}
	r.Logger.Info().
		Int("count", len(scored)).
		Int("failed", report.Failed).
		Str("output", out).
		Msg("job grading complete")
	return report, nil
}

// Apply prepares applications for jobs at or above the threshold and
// appends them to out.
func (r *Runner) Apply(ctx context.Context, in, out string) (ApplyReport, error) {
	var report ApplyReport
	if r.Preparer == nil {
		return report, errors.New("apply stage has no preparer")
	}

	r.Logger.Info().Str("input", in).Str("output", out).Msg("preparing applications")
	jobs, err := export.LoadScored(in)
	if err != nil {
		return report, fmt.Errorf("read input csv: %w", err)
	}
	report.Read = len(jobs)
	if len(jobs) == 0 {
		r.Logger.Warn().Str("input", in).Msg("no graded jobs found in input csv")
		return report, nil
	}

	threshold := r.Threshold
	if threshold <= 0 {
		threshold = apply.DefaultThreshold
	}
	eligible, skipped := apply.Eligible(jobs, threshold)
	for _, s := range skipped {
		r.Logger.Info().Msgf("Skipping job '%s' due to %s", s.Job.DisplayTitle(), s.Reason)
	}
	report.Eligible = len(eligible)
	report.Skipped = len(skipped)
	if len(eligible) == 0 {
		r.Logger.Info().Msg("No jobs met the minimum score criteria for application preparation.")
		return report, nil
	}

	apps, err := r.Preparer.GenerateAll(ctx, eligible, r.profile())
	if err != nil {
		return report, err
	}
	report.Prepared = len(apps)
	if len(apps) == 0 {
		r.Logger.Warn().Msg("no applications were prepared")
		return report, nil
	}

	if err := export.AppendApplications(ctx, out, apps, r.now()); err != nil {
		return report, fmt.Errorf("write %s: %w", out, err)
	}
	r.Logger.Info().Int("count", len(apps)).Str("output", out).Msg("appended applications")
	return report, nil
}

// FetchAndGrade runs Fetch then, when it wrote jobs, Grade.
func (r *Runner) FetchAndGrade(ctx context.Context, params models.SearchParams, fetchOut, gradeOut string) (FetchReport, GradeReport, error) {
	fetched, err := r.Fetch(ctx, params, fetchOut)
	if err != nil {
		return fetched, GradeReport{}, err
	}
	if fetched.Written == 0 {
		r.Logger.Info().Msg("nothing fetched, skipping grading")
		return fetched, GradeReport{}, nil
	}
	graded, err := r.Grade(ctx, fetchOut, gradeOut)
	return fetched, graded, err
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// profile reads the profile document, falling back to NoProfile when it is
// missing or empty.
func (r *Runner) profile() string {
	content, err := ReadProfile(r.ProfilePath)
	if err != nil {
		r.Logger.Warn().Err(err).Str("path", r.ProfilePath).Msg("profile file not found, using default empty profile")
		return NoProfile
	}
	if content == "" {
		return NoProfile
	}
	return content
}

// ReadProfile returns the non-blank lines of path, trimmed and joined by
// newlines.
func ReadProfile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("no profile path configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}
