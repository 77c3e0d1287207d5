package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jimezsa/jobpilot/internal/auth"
	"github.com/jimezsa/jobpilot/internal/export"
	"github.com/jimezsa/jobpilot/internal/models"
	"github.com/jimezsa/jobpilot/internal/seen"
	"github.com/jimezsa/jobpilot/internal/upwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	records []upwork.RawJob
	err     error
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, _ models.SearchParams) (*upwork.SearchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &upwork.SearchResult{Records: f.records, TotalCount: len(f.records)}, nil
}

// fixedScorer scores by title; titles not listed get no score.
type fixedScorer struct {
	scores  map[string]int
	profile string
}

func (f *fixedScorer) ScoreAll(_ context.Context, jobs []models.Job, profile string) ([]models.ScoredJob, error) {
	f.profile = profile
	out := make([]models.ScoredJob, len(jobs))
	for i, job := range jobs {
		out[i] = models.ScoredJob{Job: job, Reasoning: "no score"}
		if s, ok := f.scores[job.Title]; ok {
			out[i].Score = &s
			out[i].Reasoning = "fits"
		}
	}
	return out, nil
}

type echoPreparer struct {
	seen []string
}

func (e *echoPreparer) GenerateAll(_ context.Context, jobs []models.ScoredJob, _ string) ([]models.Application, error) {
	apps := make([]models.Application, 0, len(jobs))
	for _, job := range jobs {
		e.seen = append(e.seen, job.Title)
		apps = append(apps, models.Application{
			JobTitle:             job.Title,
			JobDescription:       job.Description,
			CoverLetter:          "letter for " + job.Title,
			InterviewPreparation: "prep for " + job.Title,
		})
	}
	return apps, nil
}

func raw(id, title string) upwork.RawJob {
	desc := "about " + title
	return upwork.RawJob{ID: id, Title: title, Description: &desc, JobType: "HOURLY"}
}

func openGate(t *testing.T, dir string) seen.Gate {
	t.Helper()
	gate, err := seen.OpenFile(filepath.Join(dir, "seen.json"))
	require.NoError(t, err)
	return gate
}

func TestFetchWritesNewJobsAndRecordsThem(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, FetchedArtifact)
	searcher := &fakeSearcher{records: []upwork.RawJob{
		raw("~01", "Go API"),
		raw("~02", "Scraper"),
		raw("~01", "Go API again"),
		raw("  ", "No id"),
	}}
	r := &Runner{Searcher: searcher, Gate: openGate(t, dir), Logger: zerolog.Nop()}

	report, err := r.Fetch(context.Background(), models.SearchParams{Query: "go"}, out)
	require.NoError(t, err)
	assert.Equal(t, FetchReport{Received: 4, Duplicates: 1, Dropped: 1, Written: 2, Recorded: 2}, report)

	jobs, err := export.LoadJobs(out)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, upwork.DedupKey("~01"), jobs[0].ID)
	assert.Equal(t, "Scraper", jobs[1].Title)
}

func TestFetchIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	searcher := &fakeSearcher{records: []upwork.RawJob{raw("~01", "A"), raw("~02", "B")}}
	r := &Runner{Searcher: searcher, Gate: openGate(t, dir), Logger: zerolog.Nop()}
	ctx := context.Background()

	first := filepath.Join(dir, "first.csv")
	_, err := r.Fetch(ctx, models.SearchParams{}, first)
	require.NoError(t, err)

	// A reopened gate sees what the first run recorded.
	r.Gate = openGate(t, dir)
	second := filepath.Join(dir, "second.csv")
	report, err := r.Fetch(ctx, models.SearchParams{}, second)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Duplicates)
	assert.Zero(t, report.Written)
	assert.NoFileExists(t, second)

	searcher.records = append(searcher.records, raw("~03", "C"))
	report, err = r.Fetch(ctx, models.SearchParams{}, second)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Written)
	jobs, err := export.LoadJobs(second)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "C", jobs[0].Title)
}

func TestFetchWithoutGateKeepsEverything(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{Searcher: &fakeSearcher{records: []upwork.RawJob{raw("~01", "A")}}, Logger: zerolog.Nop()}
	for i := 0; i < 2; i++ {
		report, err := r.Fetch(context.Background(), models.SearchParams{}, filepath.Join(dir, FetchedArtifact))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Written)
	}
}

func TestFetchPropagatesSearchError(t *testing.T) {
	apiErr := &upwork.ApiError{StatusCode: 500, Payload: "boom"}
	r := &Runner{Searcher: &fakeSearcher{err: apiErr}, Logger: zerolog.Nop()}
	_, err := r.Fetch(context.Background(), models.SearchParams{}, filepath.Join(t.TempDir(), "x.csv"))
	assert.ErrorIs(t, err, apiErr)
}

func TestGradeMissingInput(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{Scorer: &fixedScorer{}, Logger: zerolog.Nop()}
	_, err := r.Grade(context.Background(), filepath.Join(dir, "missing.csv"), filepath.Join(dir, "out.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read input csv")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, filepath.Join(dir, "out.csv"))
}

func TestGradeWritesEveryRow(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, FetchedArtifact), filepath.Join(dir, GradedArtifact)
	require.NoError(t, export.SaveJobs(in, []models.Job{{ID: "1", Title: "A"}, {ID: "2", Title: "B"}}))

	profile := filepath.Join(dir, "profile.txt")
	require.NoError(t, os.WriteFile(profile, []byte("  Go engineer  \n\n\n  Berlin\n"), 0o600))

	scorer := &fixedScorer{scores: map[string]int{"A": 8}}
	r := &Runner{Scorer: scorer, ProfilePath: profile, Logger: zerolog.Nop()}
	report, err := r.Grade(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, GradeReport{Read: 2, Scored: 1, Failed: 1}, report)
	assert.Equal(t, "Go engineer\nBerlin", scorer.profile)

	graded, err := export.LoadScored(out)
	require.NoError(t, err)
	require.Len(t, graded, 2)
	require.NotNil(t, graded[0].Score)
	assert.Equal(t, 8, *graded[0].Score)
	assert.Nil(t, graded[1].Score)
}

func TestGradeFallsBackToNoProfile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, FetchedArtifact)
	require.NoError(t, export.SaveJobs(in, []models.Job{{ID: "1", Title: "A"}}))

	scorer := &fixedScorer{}
	r := &Runner{Scorer: scorer, ProfilePath: filepath.Join(dir, "nope.txt"), Logger: zerolog.Nop()}
	_, err := r.Grade(context.Background(), in, filepath.Join(dir, GradedArtifact))
	require.NoError(t, err)
	assert.Equal(t, NoProfile, scorer.profile)
}

func TestApplyLogsSkipsAndAppends(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, GradedArtifact), filepath.Join(dir, ApplicationsArtifact)
	eight, five, nine := 8, 5, 9
	require.NoError(t, export.SaveScored(in, []models.ScoredJob{
		{Job: models.Job{ID: "a", Title: "A"}, Score: &eight},
		{Job: models.Job{ID: "b", Title: "B"}, Score: &five},
		{Job: models.Job{ID: "c", Title: "C"}, Score: &nine},
	}))

	var logs bytes.Buffer
	prep := &echoPreparer{}
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	r := &Runner{Preparer: prep, Logger: zerolog.New(&logs), Now: func() time.Time { return at }}

	report, err := r.Apply(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, ApplyReport{Read: 3, Eligible: 2, Skipped: 1, Prepared: 2}, report)
	assert.Equal(t, []string{"A", "C"}, prep.seen)
	assert.Contains(t, logs.String(), "Skipping job 'B' due to low score: 5.0")

	_, err = r.Apply(context.Background(), in, out)
	require.NoError(t, err)
	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(content), "DATE: 2024-03-01 09:30:00"))
	assert.Equal(t, 2, strings.Count(string(content), "letter for A"))
}

func TestApplyNothingEligible(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, GradedArtifact), filepath.Join(dir, ApplicationsArtifact)
	require.NoError(t, export.SaveScored(in, []models.ScoredJob{{Job: models.Job{ID: "a", Title: "A"}}}))

	var logs bytes.Buffer
	prep := &echoPreparer{}
	r := &Runner{Preparer: prep, Logger: zerolog.New(&logs)}
	report, err := r.Apply(context.Background(), in, out)
	require.NoError(t, err)
	assert.Zero(t, report.Eligible)
	assert.Empty(t, prep.seen)
	assert.NoFileExists(t, out)
	assert.Contains(t, logs.String(), "No jobs met the minimum score criteria for application preparation.")
}

func TestFetchAndGradeSkipsGradingWhenNothingFetched(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{Searcher: &fakeSearcher{}, Scorer: &fixedScorer{}, Logger: zerolog.Nop()}
	fetched, graded, err := r.FetchAndGrade(context.Background(), models.SearchParams{},
		filepath.Join(dir, FetchedArtifact), filepath.Join(dir, GradedArtifact))
	require.NoError(t, err)
	assert.Zero(t, fetched.Written)
	assert.Zero(t, graded.Read)
	assert.NoFileExists(t, filepath.Join(dir, GradedArtifact))
}

func newOrchestrator(t *testing.T, dir string, searcher Searcher) *Orchestrator {
	t.Helper()
	return &Orchestrator{
		Runner: &Runner{
			Searcher: searcher,
			Gate:     openGate(t, dir),
			Scorer:   &fixedScorer{scores: map[string]int{"A": 9, "B": 3}},
			Preparer: &echoPreparer{},
			Logger:   zerolog.Nop(),
		},
		Dir:    dir,
		Logger: zerolog.Nop(),
	}
}

func TestOrchestratorRunsAllStages(t *testing.T) {
	dir := t.TempDir()
	o := newOrchestrator(t, dir, &fakeSearcher{records: []upwork.RawJob{raw("~1", "A"), raw("~2", "B")}})

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report.Halted)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Fetch.Written)
	assert.Equal(t, 2, report.Grade.Read)
	assert.Equal(t, 1, report.Apply.Prepared)

	for _, name := range []string{FetchedArtifact, GradedArtifact, ApplicationsArtifact} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestOrchestratorHaltsWhenFetchWritesNothing(t *testing.T) {
	dir := t.TempDir()
	searcher := &fakeSearcher{records: []upwork.RawJob{raw("~1", "A")}}
	o := newOrchestrator(t, dir, searcher)
	_, err := o.Run(context.Background())
	require.NoError(t, err)

	// Second run: the only posting is already seen and the old artifact is stale.
	require.NoError(t, os.Chtimes(filepath.Join(dir, FetchedArtifact), time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))
	report, err := o.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Halted)
	assert.Equal(t, "fetch", report.Halted.Stage)
	assert.Equal(t, filepath.Join(dir, FetchedArtifact), report.Halted.Artifact)
	assert.Zero(t, report.Grade.Read)
}

func TestOrchestratorHaltsOnStageError(t *testing.T) {
	dir := t.TempDir()
	apiErr := &upwork.ApiError{StatusCode: 502, Payload: "bad gateway"}
	o := newOrchestrator(t, dir, &fakeSearcher{err: apiErr})

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Halted)
	assert.ErrorIs(t, report.Halted, apiErr)
	assert.NoFileExists(t, filepath.Join(dir, GradedArtifact))
}

func TestOrchestratorConfigurationErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	o := newOrchestrator(t, dir, &fakeSearcher{err: &auth.ConfigurationError{Missing: []string{"UPWORK_CLIENT_ID"}}})

	report, err := o.Run(context.Background())
	var cfgErr *auth.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Nil(t, report.Halted)
}

func TestReadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n  Senior Go developer\n\t\n10 years  \n"), 0o600))
	got, err := ReadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "Senior Go developer\n10 years", got)

	_, err = ReadProfile("")
	assert.Error(t, err)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler("every tuesday", func(context.Context) {}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSchedulerRunsImmediatelyAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	s, err := NewScheduler("@every 1h", func(context.Context) {
		runs.Add(1)
		cancel()
	}, zerolog.Nop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, true) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), runs.Load())
}
