package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jimezsa/jobpilot/internal/models"
	"github.com/jimezsa/jobpilot/internal/pipeline"
	"github.com/jimezsa/jobpilot/internal/upwork"
)

type SearchOptions struct {
	Query     string `help:"Title expression to search for (default from config)."`
	Limit     int    `help:"Maximum jobs per page (default from config)."`
	PageToken string `name:"page-token" help:"Pagination cursor from a previous fetch."`
}

func (o SearchOptions) params(ctx *Context) models.SearchParams {
	params := models.SearchParams{
		Query:     strings.TrimSpace(o.Query),
		Limit:     o.Limit,
		PageToken: strings.TrimSpace(o.PageToken),
	}
	if params.Query == "" {
		params.Query = ctx.Config.Query
	}
	if params.Limit <= 0 {
		params.Limit = ctx.Config.Limit
	}
	return params
}

type FetchJobsCmd struct {
	OutputCSV string `name:"output-csv" help:"Fetched jobs CSV." default:"fetched_jobs.csv" type:"path"`
	SearchOptions
}

type GradeJobsCmd struct {
	InputCSV  string `name:"input-csv" required:"" help:"Fetched jobs CSV to grade." type:"path"`
	OutputCSV string `name:"output-csv" help:"Graded jobs CSV." default:"graded_jobs.csv" type:"path"`
}

type FetchAndGradeJobsCmd struct {
	OutputCSVFetch string `name:"output-csv-fetch" help:"Fetched jobs CSV." default:"fetched_jobs.csv" type:"path"`
	OutputCSVGrade string `name:"output-csv-grade" help:"Graded jobs CSV." default:"graded_jobs.csv" type:"path"`
	SearchOptions
}

type PrepareApplicationsCmd struct {
	InputCSV   string `name:"input-csv" required:"" help:"Graded jobs CSV." type:"path"`
	OutputFile string `name:"output-file" help:"Markdown file applications are appended to." default:"applications.md" type:"path"`
}

type MainPipelineCmd struct {
	Dir string `help:"Directory for the stage artifacts." default:"." type:"path"`
	SearchOptions
}

func (c *FetchJobsCmd) Run(ctx *Context) error {
	runCtx := ctx.context()
	runner, closeFn, err := ctx.runner(runCtx, needFetch)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := runner.Fetch(runCtx, c.params(ctx), c.OutputCSV)
	if err != nil {
		return err
	}
	return ctx.report(report, func() {
		if report.Written == 0 {
			ctx.UI.Warnf("No new jobs (%d received, %d already seen).", report.Received, report.Duplicates)
			return
		}
		ctx.UI.Successf("Saved %d new jobs to %s.", report.Written, c.OutputCSV)
	})
}

func (c *GradeJobsCmd) Run(ctx *Context) error {
	runCtx := ctx.context()
	runner, closeFn, err := ctx.runner(runCtx, needGrade)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := runner.Grade(runCtx, c.InputCSV, c.OutputCSV)
	if err != nil {
		return err
	}
	return ctx.report(report, func() {
		if report.Read == 0 {
			ctx.UI.Warnf("No jobs to grade in %s.", c.InputCSV)
			return
		}
		ctx.UI.Successf("Graded %d jobs (%d without score) into %s.", report.Read, report.Failed, c.OutputCSV)
	})
}

func (c *FetchAndGradeJobsCmd) Run(ctx *Context) error {
	runCtx := ctx.context()
	runner, closeFn, err := ctx.runner(runCtx, needFetch|needGrade)
	if err != nil {
		return err
	}
	defer closeFn()

	fetched, graded, err := runner.FetchAndGrade(runCtx, c.params(ctx), c.OutputCSVFetch, c.OutputCSVGrade)
	if err != nil {
		return err
	}
	return ctx.report(map[string]any{"fetch": fetched, "grade": graded}, func() {
		if fetched.Written == 0 {
			ctx.UI.Warnf("No new jobs fetched; nothing to grade.")
			return
		}
		ctx.UI.Successf("Fetched %d and graded %d jobs into %s.", fetched.Written, graded.Read, c.OutputCSVGrade)
	})
}

func (c *PrepareApplicationsCmd) Run(ctx *Context) error {
	runCtx := ctx.context()
	runner, closeFn, err := ctx.runner(runCtx, needApply)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := runner.Apply(runCtx, c.InputCSV, c.OutputFile)
	if err != nil {
		return err
	}
	return ctx.report(report, func() {
		if report.Prepared == 0 {
			ctx.UI.Warnf("No applications prepared (%d eligible of %d).", report.Eligible, report.Read)
			return
		}
		ctx.UI.Successf("Appended %d applications to %s.", report.Prepared, c.OutputFile)
	})
}

func (c *MainPipelineCmd) Run(ctx *Context) error {
	report, err := runPipeline(ctx.context(), ctx, c.Dir, c.params(ctx))
	if err != nil {
		return err
	}
	return ctx.report(report, func() { printRunReport(ctx, report) })
}

// runPipeline wires a fresh runner so each scheduled run re-reads the token
// store and the dedup backend.
func runPipeline(runCtx context.Context, ctx *Context, dir string, params models.SearchParams) (*pipeline.RunReport, error) {
	runner, closeFn, err := ctx.runner(runCtx, needFetch|needGrade|needApply)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	orchestrator := &pipeline.Orchestrator{
		Runner: runner,
		Dir:    dir,
		Params: params,
		Logger: ctx.Logger,
	}
	return orchestrator.Run(runCtx)
}

func printRunReport(ctx *Context, report *pipeline.RunReport) {
	if report.Halted != nil {
		var apiErr *upwork.ApiError
		if errors.As(report.Halted, &apiErr) {
			ctx.UI.Errorf("Pipeline halted at %s: %v", report.Halted.Stage, apiErr)
			return
		}
		ctx.UI.Warnf("Pipeline halted at %s: %v", report.Halted.Stage, report.Halted)
		return
	}
	ctx.UI.Successf("Pipeline %s finished: %d fetched, %d graded, %d applications.",
		report.RunID, report.Fetch.Written, report.Grade.Read, report.Apply.Prepared)
}

// report prints v as JSON with --json, otherwise calls human.
func (c *Context) report(v any, human func()) error {
	if c.JSONOutput {
		enc := json.NewEncoder(c.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return nil
	}
	human()
	return nil
}
