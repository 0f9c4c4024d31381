package provision

import (
	"context"
	"log/slog"
	"time"

	"sitewright/internal/config"
	"sitewright/internal/metrics"
)

// RetentionStore is the slice of persistence retention needs. Only
// terminal records are deleted; active jobs are never eligible.
type RetentionStore interface {
	DeleteExpiredJobsByType(ctx context.Context, jobType string, cutoff time.Time) (int64, error)
}

// RetentionStats captures the number of job records deleted by TTL
// cleanup, per job type.
type RetentionStats struct {
	JobsDeleted map[string]int64 `json:"jobsDeleted"`
}

// CleanupExpiredJobs deletes old terminal job records based on
// retention settings so that the jobs table does not grow without
// bound. Records are kept for audit by default; TTLs are expected to
// be long.
func CleanupExpiredJobs(ctx context.Context, cfg config.RetentionConfig, st RetentionStore, clock Clock) RetentionStats {
	if clock == nil {
		clock = time.Now
	}
	now := clock().UTC()
	stats := RetentionStats{JobsDeleted: make(map[string]int64)}

	ttl := cfg.Jobs
	effectiveDays := func(specific int) int {
		if specific > 0 {
			return specific
		}
		return ttl.DefaultDays
	}

	applyJobTTL := func(jobType JobType, days int) {
		if days <= 0 {
			return
		}
		cutoff := now.AddDate(0, 0, -days)
		if n, err := st.DeleteExpiredJobsByType(ctx, string(jobType), cutoff); err == nil && n > 0 {
			stats.JobsDeleted[string(jobType)] += n
			metrics.RecordRetentionJobs(string(jobType), n)
		}
	}

	applyJobTTL(JobCreate, effectiveDays(ttl.CreateDays))
	applyJobTTL(JobUpdate, effectiveDays(ttl.UpdateDays))
	applyJobTTL(JobDelete, effectiveDays(ttl.DeleteDays))
	applyJobTTL(JobRepublish, effectiveDays(ttl.RepublishDays))

	return stats
}

// StartRetentionLoop runs TTL cleanup on the configured interval until
// ctx is cancelled. It is a no-op when retention is disabled.
func StartRetentionLoop(ctx context.Context, cfg config.RetentionConfig, st RetentionStore, clock Clock, log *slog.Logger) {
	if !cfg.Enabled {
		return
	}
	interval := time.Duration(cfg.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := CleanupExpiredJobs(ctx, cfg, st, clock)
				for jobType, n := range stats.JobsDeleted {
					log.Info("provision: expired jobs deleted", "job_type", jobType, "count", n)
				}
			}
		}
	}()
}
