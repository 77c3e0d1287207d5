package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jimezsa/jobpilot/internal/models"
)

const skillsSeparator = "; "

var jobColumns = []string{
	"id",
	"title",
	"description",
	"job_type",
	"payment_rate",
	"budget",
	"duration",
	"workload",
	"experience_level",
	"category",
	"subcategory",
	"skills",
	"link",
	"posted_at",
	"client_country",
	"client_feedback_score",
	"client_jobs_posted",
	"client_payment_verification_status",
	"client_joined_date",
	"client_total_spent",
	"client_company_profile",
}

var scoreColumns = []string{"score", "reasoning"}

func csvHeader(scored bool) []string {
	header := append([]string{}, jobColumns...)
	if scored {
		header = append(header, scoreColumns...)
	}
	return header
}

func csvRow(job models.Job) []string {
	c := job.Client
	return []string{
		job.ID,
		job.Title,
		job.Description,
		string(job.JobType),
		deref(job.PaymentRate),
		deref(job.Budget),
		job.Duration,
		job.Workload,
		job.ExperienceLevel,
		job.Category,
		job.Subcategory,
		strings.Join(job.Skills, skillsSeparator),
		job.Link,
		job.PostedAt,
		deref(c.Country),
		formatFloat(c.FeedbackScore),
		formatInt(c.JobsPosted),
		formatBool(c.PaymentVerificationStatus),
		deref(c.JoinedDate),
		deref(c.TotalSpent),
		deref(c.CompanyProfile),
	}
}

func scoredRow(job models.ScoredJob) []string {
	return append(csvRow(job.Job), formatInt(job.Score), job.Reasoning)
}

// WriteJobsCSV writes the fetch artifact.
func WriteJobsCSV(w io.Writer, jobs []models.Job) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader(false)); err != nil {
		return err
	}
	for _, job := range jobs {
		if err := writer.Write(csvRow(job)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteScoredCSV writes the grade artifact: the fetch columns plus score and reasoning.
func WriteScoredCSV(w io.Writer, jobs []models.ScoredJob) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader(true)); err != nil {
		return err
	}
	for _, job := range jobs {
		if err := writer.Write(scoredRow(job)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadJobsCSV reads rows by header name. Unknown columns are ignored and
// missing ones read as empty.
func ReadJobsCSV(r io.Reader) ([]models.Job, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}
	jobs := make([]models.Job, 0, len(rows))
	for _, row := range rows {
		job, err := parseJob(row)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ReadScoredCSV reads a grade artifact. The score cell is kept verbatim in
// RawScore so eligibility can judge malformed values.
func ReadScoredCSV(r io.Reader) ([]models.ScoredJob, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}
	jobs := make([]models.ScoredJob, 0, len(rows))
	for _, row := range rows {
		job, err := parseJob(row)
		if err != nil {
			return nil, err
		}
		raw := strings.TrimSpace(row.get("score"))
		jobs = append(jobs, models.ScoredJob{
			Job:       job,
			Score:     parseScore(raw),
			Reasoning: row.get("reasoning"),
			RawScore:  raw,
		})
	}
	return jobs, nil
}

func SaveJobs(path string, jobs []models.Job) error {
	return writeFile(path, func(w io.Writer) error { return WriteJobsCSV(w, jobs) })
}

func SaveScored(path string, jobs []models.ScoredJob) error {
	return writeFile(path, func(w io.Writer) error { return WriteScoredCSV(w, jobs) })
}

func LoadJobs(path string) ([]models.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	jobs, err := ReadJobsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return jobs, nil
}

func LoadScored(path string) ([]models.ScoredJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	jobs, err := ReadScoredCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return jobs, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

type row struct {
	index  map[string]int
	values []string
}

func (r row) get(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.values) {
		return ""
	}
	return r.values[i]
}

func (r row) ptr(column string) *string {
	v := strings.TrimSpace(r.get(column))
	if v == "" {
		return nil
	}
	return &v
}

func readRows(r io.Reader) ([]row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	var rows []row
	for {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row{index: index, values: values})
	}
	return rows, nil
}

func parseJob(r row) (models.Job, error) {
	job := models.Job{
		ID:              r.get("id"),
		Title:           r.get("title"),
		Description:     r.get("description"),
		JobType:         models.ParseJobType(r.get("job_type")),
		PaymentRate:     r.ptr("payment_rate"),
		Budget:          r.ptr("budget"),
		Duration:        r.get("duration"),
		Workload:        r.get("workload"),
		ExperienceLevel: r.get("experience_level"),
		Category:        r.get("category"),
		Subcategory:     r.get("subcategory"),
		Skills:          splitSkills(r.get("skills")),
		Link:            r.get("link"),
		PostedAt:        r.get("posted_at"),
		Client: models.ClientInfo{
			Country:        r.ptr("client_country"),
			JoinedDate:     r.ptr("client_joined_date"),
			TotalSpent:     r.ptr("client_total_spent"),
			CompanyProfile: r.ptr("client_company_profile"),
		},
	}

	if v := r.ptr("client_feedback_score"); v != nil {
		f, err := strconv.ParseFloat(*v, 64)
		if err != nil {
			return job, fmt.Errorf("client_feedback_score %q: %w", *v, err)
		}
		job.Client.FeedbackScore = &f
	}
	if v := r.ptr("client_jobs_posted"); v != nil {
		n, err := strconv.Atoi(*v)
		if err != nil {
			return job, fmt.Errorf("client_jobs_posted %q: %w", *v, err)
		}
		job.Client.JobsPosted = &n
	}
	if v := r.ptr("client_payment_verification_status"); v != nil {
		b, err := strconv.ParseBool(*v)
		if err != nil {
			return job, fmt.Errorf("client_payment_verification_status %q: %w", *v, err)
		}
		job.Client.PaymentVerificationStatus = &b
	}
	return job, nil
}

func splitSkills(cell string) []string {
	skills := []string{}
	for _, s := range strings.Split(cell, ";") {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	return skills
}

// parseScore accepts integral values only; "8.0" reads as 8.
func parseScore(raw string) *int {
	if raw == "" {
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return nil
	}
	n := int(f)
	return &n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func formatBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}
