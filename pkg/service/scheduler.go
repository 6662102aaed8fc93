package service

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/apexcrm/leadflow/pkg/models"
	"github.com/apexcrm/leadflow/pkg/queue"
	"github.com/apexcrm/leadflow/pkg/storage"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// scheduleTimePattern matches an embedded time of day in free text,
// e.g. "at 5:30 PM", "at 17:00" or "at 9am".
var scheduleTimePattern = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)

// ParseScheduledTime heuristically extracts a 24-hour target time from a
// workflow description. This is intentionally isolated so a structured
// cron_expression field can replace it without touching Scan.
func ParseScheduledTime(description string) (hour, minute int, ok bool) {
	m := scheduleTimePattern.FindStringSubmatch(description)
	if m == nil {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return 0, 0, false
	}
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour, minute, true
}

// Scheduler fires "Time Elapsed" workflows whose description embeds a
// time of day matching the current wall clock. It is driven once per
// minute via the queue's repeatable job; the one-minute firing window
// relies on that cadence to avoid missed and duplicate fires. A single
// engine instance is assumed (two instances would double-fire).
type Scheduler struct {
	store    storage.Store
	executor *Executor
	clock    Clock
	logger   Logger
}

func NewScheduler(store storage.Store, executor *Executor, clock Clock, logger Logger) *Scheduler {
	return &Scheduler{store: store, executor: executor, clock: clock, logger: logger}
}

// SystemEntity is the synthetic subject passed to scheduler-fired runs.
func SystemEntity() models.TriggerEntity {
	return models.TriggerEntity{ID: "system", Name: "System Scheduler"}
}

// Scan fires every due scheduled workflow. A query error aborts the whole
// scan and propagates to the worker; a workflow whose description yields
// no parseable time is skipped silently.
func (s *Scheduler) Scan(ctx context.Context) error {
	now := s.clock.Now()
	workflows, err := s.store.ListActiveWorkflowsByTrigger(models.TimeElapsedTrigger)
	if err != nil {
		return errors.Wrap(err, "list scheduled workflows")
	}

	for _, wf := range workflows {
		hour, minute, ok := ParseScheduledTime(wf.Description)
		if !ok {
			continue
		}
		if now.Hour() != hour || now.Minute() != minute {
			continue
		}
		s.logger.Infof("Firing scheduled workflow %s (%s) at %02d:%02d", wf.ID, wf.Name, hour, minute)
		s.executor.Execute(ctx, wf, SystemEntity())
	}
	return nil
}

// StartCron registers the once-per-minute repeatable enqueue of the scan
// job. Registration is idempotent for a process lifetime: one entry per
// Scheduler. The returned cron must be stopped by the caller on shutdown.
func (s *Scheduler) StartCron(ctx context.Context, q queue.Queue) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc("* * * * *", func() {
		if err := q.Enqueue(ctx, queue.CheckScheduledWorkflowsJob, struct{}{}, queue.DefaultOptions()); err != nil {
			s.logger.Errorf("Failed to enqueue scheduled scan: %v", err)
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "register scheduled scan")
	}
	c.Start()
	return c, nil
}
