package upwork

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jimezsa/jobpilot/internal/models"
)

const jobURLPrefix = "https://www.upwork.com/jobs/"

// DedupKey is the sha256 hex digest of an upstream job id. It is the stored
// Job.ID and the deduplication key, so it must stay stable across releases.
func DedupKey(upstreamID string) string {
	sum := sha256.Sum256([]byte(upstreamID))
	return hex.EncodeToString(sum[:])
}

// ParseJobType maps the API engagement type onto models.JobType.
func ParseJobType(raw string) models.JobType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "HOURLY":
		return models.JobTypeHourly
	case "FIXED_PRICE", "FIXED":
		return models.JobTypeFixed
	default:
		return models.JobTypeNotSpecified
	}
}

// HourlyRate renders an hourly budget range, or nil when neither bound is set.
func HourlyRate(r *RawRange) *string {
	if r == nil {
		return nil
	}
	var out string
	switch {
	case r.Min != nil && r.Max != nil:
		out = fmt.Sprintf("$%s-$%s", r.Min, r.Max)
	case r.Max != nil:
		out = fmt.Sprintf("Up to $%s", r.Max)
	case r.Min != nil:
		out = fmt.Sprintf("From $%s", r.Min)
	default:
		return nil
	}
	return &out
}

// FixedBudget renders a fixed-price amount as "$value CODE", or nil without a value.
func FixedBudget(m *RawMoney) *string {
	if m == nil || m.Value == nil {
		return nil
	}
	out := strings.TrimSpace(fmt.Sprintf("$%s %s", m.Value, m.CurrencyCode))
	return &out
}

// MapJob normalizes one raw record. Only ErrMissingID is returned.
func MapJob(raw RawJob) (models.Job, error) {
	if strings.TrimSpace(raw.ID) == "" {
		return models.Job{}, ErrMissingID
	}

	job := models.Job{
		ID:              DedupKey(raw.ID),
		Title:           raw.Title,
		JobType:         ParseJobType(raw.JobType),
		Duration:        raw.DurationLabel,
		Workload:        raw.Engagement,
		ExperienceLevel: raw.ExperienceLevel,
		Category:        raw.Category,
		Subcategory:     raw.Subcategory,
		PostedAt:        raw.CreatedDateTime,
		Skills:          []string{},
	}
	if raw.Description != nil {
		job.Description = *raw.Description
	}
	if raw.Ciphertext != "" {
		job.Link = jobURLPrefix + raw.Ciphertext
	}

	switch job.JobType {
	case models.JobTypeHourly:
		job.PaymentRate = HourlyRate(raw.HourlyBudget)
	case models.JobTypeFixed:
		job.Budget = FixedBudget(raw.Amount)
	}

	for _, skill := range raw.Skills {
		if name := strings.TrimSpace(skill.Name); name != "" {
			job.Skills = append(job.Skills, name)
		}
	}

	if c := raw.Client; c != nil {
		if c.Country != nil {
			job.Client.Country = c.Country.Name
		}
		job.Client.FeedbackScore = c.TotalFeedback
		job.Client.JobsPosted = c.TotalPostedJobs
		if c.PaymentVerificationStatus != nil {
			verified := strings.EqualFold(strings.TrimSpace(*c.PaymentVerificationStatus), "VERIFIED")
			job.Client.PaymentVerificationStatus = &verified
		}
		job.Client.JoinedDate = c.CreatedDateTime
		if c.TotalSpent != nil {
			job.Client.TotalSpent = c.TotalSpent.DisplayValue
		}
		job.Client.CompanyProfile = c.CompanyName
	}

	return job, nil
}
