package models

// JobType is the engagement type of a posting.
type JobType string

const (
	JobTypeFixed        JobType = "Fixed"
	JobTypeHourly       JobType = "Hourly"
	JobTypeNotSpecified JobType = "Not Specified"
)

// ParseJobType maps a stored job type back to its enum value. Unknown values
// map to JobTypeNotSpecified.
func ParseJobType(value string) JobType {
	switch JobType(value) {
	case JobTypeFixed:
		return JobTypeFixed
	case JobTypeHourly:
		return JobTypeHourly
	default:
		return JobTypeNotSpecified
	}
}

// ClientInfo describes the client who posted a job. Nil fields were absent upstream.
type ClientInfo struct {
	Country                   *string  `json:"country"`
	FeedbackScore             *float64 `json:"feedback_score"`
	JobsPosted                *int     `json:"jobs_posted"`
	PaymentVerificationStatus *bool    `json:"payment_verification_status"`
	JoinedDate                *string  `json:"joined_date"`
	TotalSpent                *string  `json:"total_spent"`
	CompanyProfile            *string  `json:"company_profile"`
}

// Job is the normalized posting produced by the fetch stage.
type Job struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	JobType         JobType    `json:"job_type"`
	PaymentRate     *string    `json:"payment_rate"`
	Budget          *string    `json:"budget"`
	Duration        string     `json:"duration,omitempty"`
	Workload        string     `json:"workload,omitempty"`
	ExperienceLevel string     `json:"experience_level,omitempty"`
	Category        string     `json:"category,omitempty"`
	Subcategory     string     `json:"subcategory,omitempty"`
	Skills          []string   `json:"skills"`
	Link            string     `json:"link,omitempty"`
	PostedAt        string     `json:"posted_at,omitempty"`
	Client          ClientInfo `json:"client"`
}

// DisplayTitle returns a title suitable for log lines.
func (j Job) DisplayTitle() string {
	if j.Title != "" {
		return j.Title
	}
	if j.ID != "" {
		return j.ID
	}
	return "Unknown Job"
}

// ScoredJob is a Job with the grading outcome attached. A nil Score means
// grading did not complete; Reasoning then explains why.
type ScoredJob struct {
	Job
	Score     *int   `json:"score"`
	Reasoning string `json:"reasoning"`

	// RawScore holds the score cell exactly as read from a graded artifact.
	RawScore string `json:"-"`
}

// Application holds the generated materials for one eligible job.
type Application struct {
	JobTitle             string `json:"job_title"`
	JobDescription       string `json:"job_description"`
	CoverLetter          string `json:"cover_letter"`
	InterviewPreparation string `json:"interview_preparation"`
}
