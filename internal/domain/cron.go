package domain

import "time"

// CronSchedule is a raw 5-field cron expression, e.g. "0 0 * * *". The
// Scheduler parses it and computes next-fire times with robfig/cron
// directly; the domain only carries the string.
type CronSchedule struct {
	Expression string
}

// CronEntry describes the single registered scheduler entry's run state,
// surfaced on the dashboard.
type CronEntry struct {
	Schedule CronSchedule
	LastRun  time.Time
	NextRun  time.Time
	Running  bool
}
