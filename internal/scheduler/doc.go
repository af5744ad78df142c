// Package scheduler runs periodic jobs such as the mirror sync.
//
// Schedules are either cron expressions parsed by github.com/robfig/cron/v3
// (five fields, or six with leading seconds, plus descriptors like
// "@every 15m" and "@hourly") or plain Go durations ("90s"), which run on a
// ticker and allow sub-second intervals.
//
// Each job has an overlap policy (allow, skip or delay), an optional
// per-run timeout and a name used in logs and hooks. Panics are recovered
// and reported through JobHooks.OnJobError.
//
//	s := scheduler.New(scheduler.Config{Logger: logger})
//	_, err := s.AddJob("@every 15m", syncer.RunJob, scheduler.JobOptions{
//		Name:          "mirror-sync",
//		Timeout:       5 * time.Minute,
//		OverlapPolicy: scheduler.SkipIfRunning,
//	})
//	s.Start()
//	defer s.Stop()
package scheduler
