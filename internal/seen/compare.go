package seen

import (
	"context"
	"strings"

	"github.com/jimezsa/jobpilot/internal/models"
)

// FilterStats captures stats for unseen filtering against a gate.
type FilterStats struct {
	Total   int
	Invalid int
	Seen    int
	Unseen  int
}

// RecordStats captures stats for marking jobs seen.
type RecordStats struct {
	Total   int
	Invalid int
	Added   int
}

// Key returns the deduplication key of a mapped job.
func Key(job models.Job) (string, bool) {
	key := strings.TrimSpace(job.ID)
	if key == "" {
		return "", false
	}
	return key, true
}

// Filter returns the jobs whose keys are not yet in g, dropping repeats
// within jobs. Order is preserved.
func Filter(ctx context.Context, g Gate, jobs []models.Job) ([]models.Job, FilterStats, error) {
	stats := FilterStats{Total: len(jobs)}

	batch := make(map[string]struct{}, len(jobs))
	unseen := make([]models.Job, 0, len(jobs))
	for _, job := range jobs {
		key, ok := Key(job)
		if !ok {
			stats.Invalid++
			continue
		}
		if _, dup := batch[key]; dup {
			stats.Seen++
			continue
		}
		batch[key] = struct{}{}

		exists, err := Contains(ctx, g, key)
		if err != nil {
			return nil, stats, err
		}
		if exists {
			stats.Seen++
			continue
		}
		unseen = append(unseen, job)
	}

	stats.Unseen = len(unseen)
	return unseen, stats, nil
}

// Record inserts the keys of jobs into g. Inserting a known key is a no-op.
func Record(ctx context.Context, g Gate, jobs []models.Job) (RecordStats, error) {
	stats := RecordStats{Total: len(jobs)}
	for _, job := range jobs {
		key, ok := Key(job)
		if !ok {
			stats.Invalid++
			continue
		}
		exists, err := g.Exists(ctx, key)
		if err != nil {
			return stats, err
		}
		if exists {
			continue
		}
		if err := g.Insert(ctx, key); err != nil {
			return stats, err
		}
		stats.Added++
	}
	return stats, nil
}
