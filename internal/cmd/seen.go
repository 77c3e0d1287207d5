package cmd

import (
	"fmt"
	"strings"

	"github.com/jimezsa/jobpilot/internal/export"
	"github.com/jimezsa/jobpilot/internal/seen"
	"github.com/jimezsa/jobpilot/internal/upwork"
)

type SeenCmd struct {
	Count  SeenCountCmd  `cmd:"" help:"Print the number of recorded jobs."`
	Check  SeenCheckCmd  `cmd:"" help:"Report whether upstream job ids were already fetched."`
	Diff   SeenDiffCmd   `cmd:"" help:"Write the jobs of a CSV that are not yet recorded."`
	Update SeenUpdateCmd `cmd:"" help:"Record every job of a CSV as seen."`
}

type SeenCountCmd struct{}

type SeenCheckCmd struct {
	IDs []string `arg:"" name:"id" help:"Upstream job ids."`
}

type SeenDiffCmd struct {
	Input string `name:"input" required:"" help:"Fetched jobs CSV (A)." type:"existingfile"`
	Out   string `name:"out" required:"" help:"Output CSV for jobs not in the store." type:"path"`
	Stats bool   `name:"stats" help:"Print comparison stats."`
}

type SeenUpdateCmd struct {
	Input string `name:"input" required:"" help:"Jobs CSV to record." type:"existingfile"`
	Stats bool   `name:"stats" help:"Print merge stats."`
}

func (c *SeenCountCmd) Run(ctx *Context) error {
	runCtx := ctx.context()
	gate, err := ctx.openGate(runCtx)
	if err != nil {
		return err
	}
	defer gate.Close()

	n, err := gate.Count(runCtx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.Out, n)
	return err
}

type checkResult struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Seen bool   `json:"seen"`
}

func (c *SeenCheckCmd) Run(ctx *Context) error {
	runCtx := ctx.context()
	gate, err := ctx.openGate(runCtx)
	if err != nil {
		return err
	}
	defer gate.Close()

	results := make([]checkResult, 0, len(c.IDs))
	for _, id := range c.IDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		key := upwork.DedupKey(id)
		ok, err := seen.Contains(runCtx, gate, key)
		if err != nil {
			return err
		}
		results = append(results, checkResult{ID: id, Key: key, Seen: ok})
	}

	return ctx.report(results, func() {
		for _, r := range results {
			state := "new"
			if r.Seen {
				state = "seen"
			}
			fmt.Fprintf(ctx.Out, "%s\t%s\t%s\n", r.ID, state, r.Key)
		}
	})
}

func (c *SeenDiffCmd) Run(ctx *Context) error {
	jobs, err := export.LoadJobs(c.Input)
	if err != nil {
		return fmt.Errorf("read --input: %w", err)
	}

	runCtx := ctx.context()
	gate, err := ctx.openGate(runCtx)
	if err != nil {
		return err
	}
	defer gate.Close()

	unseen, stats, err := seen.Filter(runCtx, gate, jobs)
	if err != nil {
		return err
	}
	if err := export.SaveJobs(c.Out, unseen); err != nil {
		return fmt.Errorf("write --out: %w", err)
	}

	if c.Stats {
		_, err := fmt.Fprintf(
			ctx.Out,
			"total=%d seen=%d invalid_skipped=%d unseen_emitted=%d\n",
			stats.Total,
			stats.Seen,
			stats.Invalid,
			stats.Unseen,
		)
		return err
	}
	return nil
}

func (c *SeenUpdateCmd) Run(ctx *Context) error {
	jobs, err := export.LoadJobs(c.Input)
	if err != nil {
		return fmt.Errorf("read --input: %w", err)
	}

	runCtx := ctx.context()
	gate, err := ctx.openGate(runCtx)
	if err != nil {
		return err
	}
	defer gate.Close()

	stats, err := seen.Record(runCtx, gate, jobs)
	if err != nil {
		return err
	}

	if c.Stats {
		total, err := gate.Count(runCtx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(
			ctx.Out,
			"total_input=%d invalid_skipped=%d added=%d total_out=%d\n",
			stats.Total,
			stats.Invalid,
			stats.Added,
			total,
		)
		return err
	}
	return nil
}
