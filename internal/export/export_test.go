package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jimezsa/jobpilot/internal/models"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int { return &n }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool { return &b }

func sampleJob() models.Job {
	return models.Job{
		ID:              "3f2a",
		Title:           "Go developer, \"senior\"",
		Description:     "Line one\nLine two, with comma",
		JobType:         models.JobTypeHourly,
		PaymentRate:     strPtr("$30-$50"),
		Duration:        "1 to 3 months",
		Workload:        "Less than 30 hrs/week",
		ExperienceLevel: "EXPERT",
		Category:        "Web Development",
		Subcategory:     "Back-End Development",
		Skills:          []string{"Go", "PostgreSQL"},
		Link:            "https://www.upwork.com/jobs/~01abc",
		PostedAt:        "2025-01-02T03:04:05Z",
		Client: models.ClientInfo{
			Country:                   strPtr("United States"),
			FeedbackScore:             floatPtr(4.95),
			JobsPosted:                intPtr(12),
			PaymentVerificationStatus: boolPtr(false),
			JoinedDate:                strPtr("2019-05-01"),
			TotalSpent:                strPtr("$10K"),
		},
	}
}

func TestJobsCSVRoundTrip(t *testing.T) {
	bare := models.Job{ID: "bare", JobType: models.JobTypeNotSpecified, Skills: []string{}}
	jobs := []models.Job{sampleJob(), bare}

	var buf bytes.Buffer
	if err := WriteJobsCSV(&buf, jobs); err != nil {
		t.Fatalf("WriteJobsCSV() error = %v", err)
	}
	got, err := ReadJobsCSV(&buf)
	if err != nil {
		t.Fatalf("ReadJobsCSV() error = %v", err)
	}
	if !reflect.DeepEqual(got, jobs) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, jobs)
	}
	if got[1].Client.PaymentVerificationStatus != nil || got[1].Client.FeedbackScore != nil {
		t.Fatalf("absent client fields must stay nil: %+v", got[1].Client)
	}
}

func TestCSVHeaderOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteScoredCSV(&buf, nil); err != nil {
		t.Fatalf("WriteScoredCSV() error = %v", err)
	}
	header := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(header, "id,title,description,job_type,payment_rate,budget,") {
		t.Fatalf("unexpected header: %s", header)
	}
	if !strings.HasSuffix(header, "client_company_profile,score,reasoning") {
		t.Fatalf("unexpected header: %s", header)
	}
	if !strings.Contains(header, "skills,link,posted_at,client_country,client_feedback_score,client_jobs_posted,client_payment_verification_status,client_joined_date,client_total_spent") {
		t.Fatalf("client columns out of order: %s", header)
	}
}

func TestScoredCSVRoundTrip(t *testing.T) {
	jobs := []models.ScoredJob{
		{Job: sampleJob(), Score: intPtr(8), Reasoning: "strong match"},
		{Job: models.Job{ID: "b", JobType: models.JobTypeFixed, Budget: strPtr("$500 USD"), Skills: []string{}}, Reasoning: "Scoring failed or no score provided by LLM."},
	}
	var buf bytes.Buffer
	if err := WriteScoredCSV(&buf, jobs); err != nil {
		t.Fatalf("WriteScoredCSV() error = %v", err)
	}
	got, err := ReadScoredCSV(&buf)
	if err != nil {
		t.Fatalf("ReadScoredCSV() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Score == nil || *got[0].Score != 8 || got[0].RawScore != "8" {
		t.Fatalf("score not preserved: %+v", got[0])
	}
	if got[1].Score != nil || got[1].RawScore != "" {
		t.Fatalf("nil score must read back empty: %+v", got[1])
	}
	if got[1].Reasoning != jobs[1].Reasoning {
		t.Fatalf("Reasoning = %q", got[1].Reasoning)
	}
	if !reflect.DeepEqual(got[0].Job, jobs[0].Job) {
		t.Fatalf("job fields changed:\n got %+v\nwant %+v", got[0].Job, jobs[0].Job)
	}
}

func TestReadScoredKeepsRawScore(t *testing.T) {
	input := "title,score,id\nA,6.999,1\nB,abc,2\nC,8.0,3\n"
	got, err := ReadScoredCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadScoredCSV() error = %v", err)
	}
	if got[0].RawScore != "6.999" || got[0].Score != nil {
		t.Fatalf("row A = %+v", got[0])
	}
	if got[1].RawScore != "abc" || got[1].Score != nil {
		t.Fatalf("row B = %+v", got[1])
	}
	if got[2].Score == nil || *got[2].Score != 8 {
		t.Fatalf("row C = %+v", got[2])
	}
	if got[2].ID != "3" || got[2].Title != "C" {
		t.Fatalf("columns must be read by header name: %+v", got[2])
	}
}

func TestReadRejectsBadClientNumber(t *testing.T) {
	input := "id,client_jobs_posted\n1,many\n"
	if _, err := ReadJobsCSV(strings.NewReader(input)); err == nil {
		t.Fatalf("expected error for non-numeric client_jobs_posted")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "fetched_jobs.csv")
	if err := SaveJobs(path, []models.Job{sampleJob()}); err != nil {
		t.Fatalf("SaveJobs() error = %v", err)
	}
	got, err := LoadJobs(path)
	if err != nil {
		t.Fatalf("LoadJobs() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "3f2a" {
		t.Fatalf("LoadJobs() = %+v", got)
	}

	if _, err := LoadScored(filepath.Join(t.TempDir(), "missing.csv")); !os.IsNotExist(err) {
		t.Fatalf("LoadScored() error = %v, want not-exist", err)
	}
}

func TestAppendApplications(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applications.md")
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	apps := []models.Application{
		{JobTitle: "A", JobDescription: "desc A", CoverLetter: "letter A", InterviewPreparation: "prep A"},
		{JobTitle: "B", JobDescription: "desc B", CoverLetter: "letter B", InterviewPreparation: "prep B"},
	}

	if err := AppendApplications(context.Background(), path, apps, at); err != nil {
		t.Fatalf("AppendApplications() error = %v", err)
	}
	if err := AppendApplications(context.Background(), path, apps[:1], at.Add(time.Hour)); err != nil {
		t.Fatalf("AppendApplications() (2nd) error = %v", err)
	}
	if err := AppendApplications(context.Background(), path, nil, at); err != nil {
		t.Fatalf("AppendApplications() (empty) error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)

	header := "\n" + strings.Repeat("=", 80) + "\nDATE: 2025-03-04 05:06:07\n" + strings.Repeat("=", 80) + "\n\n"
	if !strings.HasPrefix(text, header) {
		t.Fatalf("missing run header, got:\n%s", text[:min(len(text), 200)])
	}
	section := "### Job Description\ndesc A\n\n### Cover Letter\nletter A\n\n### Interview Preparation\nprep A\n\n\n" + strings.Repeat("/", 100) + "\n\n"
	if !strings.Contains(text, section) {
		t.Fatalf("missing job section")
	}
	if got := strings.Count(text, "DATE: "); got != 2 {
		t.Fatalf("run blocks = %d, want 2", got)
	}
	if got := strings.Count(text, strings.Repeat("/", 100)); got != 3 {
		t.Fatalf("job separators = %d, want 3", got)
	}
	if !strings.Contains(text, "DATE: 2025-03-04 06:06:07") {
		t.Fatalf("second block timestamp missing")
	}
}

func TestWriteJobsTable(t *testing.T) {
	jobs := []models.ScoredJob{{Job: sampleJob(), Score: intPtr(9)}}
	var buf bytes.Buffer
	if err := WriteJobs(&buf, jobs, FormatTable, WriteOptions{Scored: true}); err != nil {
		t.Fatalf("WriteJobs() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"score", "9", "$30-$50", "United States", "https://www.upwork.com/jobs/~01abc"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteJobs(&buf, nil, FormatTable, WriteOptions{}); err != nil {
		t.Fatalf("WriteJobs() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "No results." {
		t.Fatalf("empty table = %q", buf.String())
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "CSV": FormatCSV, "json": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error for xml")
	}
}

func TestShortURLLabel(t *testing.T) {
	got := shortURLLabel("https://www.upwork.com/jobs/~01abc")
	if got != "upwork.com/jobs/~01abc" {
		t.Fatalf("shortURLLabel() = %q", got)
	}
}
