package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/jimezsa/jobpilot/internal/models"
)

const (
	runDelimiter = "="
	jobDelimiter = "/"

	timestampLayout = "2006-01-02 15:04:05"
)

// WriteApplications renders one run block: a dated header followed by a
// section per application.
func WriteApplications(w io.Writer, apps []models.Application, at time.Time) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\n%s\n", strings.Repeat(runDelimiter, 80))
	fmt.Fprintf(bw, "DATE: %s\n", at.Format(timestampLayout))
	fmt.Fprintf(bw, "%s\n\n", strings.Repeat(runDelimiter, 80))

	for _, app := range apps {
		fmt.Fprintf(bw, "### Job Description\n%s\n\n", app.JobDescription)
		fmt.Fprintf(bw, "### Cover Letter\n%s\n\n", app.CoverLetter)
		fmt.Fprintf(bw, "### Interview Preparation\n%s\n\n", app.InterviewPreparation)
		fmt.Fprintf(bw, "\n%s\n\n", strings.Repeat(jobDelimiter, 100))
	}
	return bw.Flush()
}

// AppendApplications appends a run block to path under an exclusive file
// lock. Existing content is never rewritten. Nothing is written for an
// empty batch.
func AppendApplications(ctx context.Context, path string, apps []models.Application, at time.Time) error {
	if len(apps) == 0 {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", path)
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := WriteApplications(f, apps, at); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
