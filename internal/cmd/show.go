package cmd

import (
	"fmt"

	"github.com/jimezsa/jobpilot/internal/apply"
	"github.com/jimezsa/jobpilot/internal/export"
	"github.com/jimezsa/jobpilot/internal/models"
)

type ShowCmd struct {
	InputCSV string `arg:"" name:"input-csv" help:"Fetched or graded jobs CSV." type:"existingfile"`
	Format   string `help:"Output format: table, csv, json." enum:"table,csv,json" default:"table"`
	Links    string `help:"Table link display: short or full." enum:"short,full" default:"full"`
	Eligible bool   `help:"Only jobs at or above the score threshold."`
}

func (s *ShowCmd) Run(ctx *Context) error {
	jobs, err := export.LoadScored(s.InputCSV)
	if err != nil {
		return err
	}

	scored := isGraded(jobs)
	if s.Eligible {
		if !scored {
			return fmt.Errorf("--eligible needs a graded CSV")
		}
		jobs, _ = apply.Eligible(jobs, ctx.Config.ScoreThreshold)
	}

	format, err := export.ParseFormat(s.Format)
	if err != nil {
		return err
	}
	if ctx.JSONOutput {
		format = export.FormatJSON
	}
	return export.WriteJobs(ctx.Out, jobs, format, export.WriteOptions{
		ColorEnabled: ctx.UI.ColorEnabled,
		Hyperlinks:   ctx.UI.ColorEnabled,
		LinkStyle:    export.LinkStyle(s.Links),
		Scored:       scored,
		Threshold:    ctx.Config.ScoreThreshold,
	})
}

// isGraded reports whether jobs came from a grade artifact. Every graded row
// carries a reasoning, even when scoring failed.
func isGraded(jobs []models.ScoredJob) bool {
	for _, job := range jobs {
		if job.RawScore != "" || job.Reasoning != "" {
			return true
		}
	}
	return false
}
