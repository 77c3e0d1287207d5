package export

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/jimezsa/jobpilot/internal/models"
	"github.com/jimezsa/jobpilot/internal/ui"
	"github.com/muesli/termenv"
)

type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

type WriteOptions struct {
	ColorEnabled bool
	Hyperlinks   bool
	LinkStyle    LinkStyle
	// Scored adds the score column to tables and the score columns to CSV.
	Scored bool
	// Threshold colors table scores; zero means 7.
	Threshold float64
}

type LinkStyle string

const (
	LinkStyleShort LinkStyle = "short"
	LinkStyleFull  LinkStyle = "full"
)

// WriteJobs renders jobs for the terminal or a pipe.
func WriteJobs(w io.Writer, jobs []models.ScoredJob, format Format, opts WriteOptions) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, jobs, opts.Scored)
	case FormatCSV:
		if opts.Scored {
			return WriteScoredCSV(w, jobs)
		}
		plain := make([]models.Job, len(jobs))
		for i, job := range jobs {
			plain[i] = job.Job
		}
		return WriteJobsCSV(w, plain)
	default:
		return writeTable(w, jobs, opts)
	}
}

// ParseFormat maps a flag value onto a Format.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "table", "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format: %s", value)
	}
}

func writeJSON(w io.Writer, jobs []models.ScoredJob, scored bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if scored {
		return enc.Encode(jobs)
	}
	plain := make([]models.Job, len(jobs))
	for i, job := range jobs {
		plain[i] = job.Job
	}
	return enc.Encode(plain)
}

func writeTable(w io.Writer, jobs []models.ScoredJob, opts WriteOptions) error {
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(tableHeader(opts.Scored), "\t"))
	output := termenv.NewOutput(w)
	for _, job := range jobs {
		fmt.Fprintln(tw, strings.Join(tableRow(job, output, opts), "\t"))
	}
	return tw.Flush()
}

func tableHeader(scored bool) []string {
	header := []string{"title", "type", "rate", "client", "url"}
	if scored {
		header = append([]string{"score"}, header...)
	}
	return header
}

func tableRow(job models.ScoredJob, output *termenv.Output, opts WriteOptions) []string {
	link := safe(job.Link)
	displayURL := "-"
	if link != "" {
		displayURL = link
		if opts.LinkStyle == LinkStyleShort && opts.Hyperlinks {
			displayURL = shortURLLabel(link)
		}
		displayURL = ui.ColorizeLink(output, opts.ColorEnabled, displayURL)
		if opts.Hyperlinks {
			displayURL = hyperlink(link, displayURL)
		}
	}

	rate := "-"
	switch {
	case job.PaymentRate != nil:
		rate = *job.PaymentRate
	case job.Budget != nil:
		rate = *job.Budget
	}

	cells := []string{
		truncate(safe(job.Title), 60),
		string(job.JobType),
		rate,
		clientLabel(job.Client),
		displayURL,
	}
	if opts.Scored {
		threshold := opts.Threshold
		if threshold <= 0 {
			threshold = 7
		}
		score := ui.ColorizeScore(output, opts.ColorEnabled, job.Score, threshold)
		cells = append([]string{score}, cells...)
	}
	return cells
}

func clientLabel(c models.ClientInfo) string {
	var parts []string
	if c.Country != nil {
		parts = append(parts, *c.Country)
	}
	if c.PaymentVerificationStatus != nil && *c.PaymentVerificationStatus {
		parts = append(parts, "verified")
	}
	if c.TotalSpent != nil {
		parts = append(parts, *c.TotalSpent)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func hyperlink(url string, text string) string {
	const esc = "\x1b"
	return esc + "]8;;" + url + esc + "\\" + text + esc + "]8;;" + esc + "\\"
}

func shortURLLabel(raw string) string {
	label := strings.TrimSpace(raw)
	if parsed, err := url.Parse(raw); err == nil {
		host := strings.TrimPrefix(parsed.Host, "www.")
		if host != "" {
			label = host + parsed.Path
		}
	}
	if label == "" {
		label = raw
	}
	return truncate(label, 60)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func safe(value string) string {
	return strings.TrimSpace(value)
}
