package scheduler

import (
	"fmt"
	"time"

	"github.com/lifelog-labs/lifelog-sync-server/internal/config"
)

// defaultInterval applies to interval schedules without a configured interval
const defaultInterval = time.Hour

// Schedule describes when a source should sync
type Schedule struct {
	// Kind is one of manual, interval, hourly, daily, weekly
	Kind string

	// Interval applies to interval schedules
	Interval time.Duration

	// Hour applies to daily and weekly schedules (0-23)
	Hour int

	// Weekday applies to weekly schedules
	Weekday time.Weekday
}

// Validate checks the schedule fields against its kind
func (s Schedule) Validate() error {
	switch s.Kind {
	case config.ScheduleKindManual, config.ScheduleKindHourly:
	case config.ScheduleKindInterval:
		if s.Interval <= 0 {
			return fmt.Errorf("interval schedules require a positive interval")
		}
	case config.ScheduleKindDaily, config.ScheduleKindWeekly:
		if s.Hour < 0 || s.Hour > 23 {
			return fmt.Errorf("hour must be in 0..23, got %d", s.Hour)
		}
		if s.Kind == config.ScheduleKindWeekly && (s.Weekday < time.Sunday || s.Weekday > time.Saturday) {
			return fmt.Errorf("weekday must be in 0..6, got %d", s.Weekday)
		}
	default:
		return fmt.Errorf("unsupported schedule kind: %s", s.Kind)
	}
	return nil
}

// scheduleFromConfig converts a seeded schedule configuration
func scheduleFromConfig(sc config.ScheduleConfig) Schedule {
	interval := defaultInterval
	if sc.Interval != "" {
		// Validated at config load
		if parsed, err := time.ParseDuration(sc.Interval); err == nil {
			interval = parsed
		}
	}
	return Schedule{
		Kind:     sc.Kind,
		Interval: interval,
		Hour:     sc.Hour,
		Weekday:  time.Weekday(sc.Weekday),
	}
}

// nextRunTime computes the next run for a schedule relative to now.
// Manual schedules never run on their own; nil means "not scheduled".
func nextRunTime(now time.Time, s Schedule) *time.Time {
	switch s.Kind {
	case config.ScheduleKindInterval:
		interval := s.Interval
		if interval <= 0 {
			interval = defaultInterval
		}
		t := now.Add(interval)
		return &t

	case config.ScheduleKindHourly:
		t := time.Date(now.Year(), now.Month(), now.Day(), now.Hour()+1, 0, 0, 0, now.Location())
		return &t

	case config.ScheduleKindDaily:
		t := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, 0, 0, 0, now.Location())
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return &t

	case config.ScheduleKindWeekly:
		// Always at least one day ahead, so an exact weekday match cannot
		// double-fire in the same tick.
		days := (int(s.Weekday) - int(now.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		t := time.Date(now.Year(), now.Month(), now.Day()+days, s.Hour, 0, 0, 0, now.Location())
		return &t

	default:
		// Manual and unknown kinds never self-schedule
		return nil
	}
}

// inWindow reports whether now falls inside the daily sync window.
// StartHour > EndHour means an overnight window that wraps past midnight.
func inWindow(now time.Time, w *config.WindowConfig) bool {
	if w == nil {
		return true
	}
	hour := now.Hour()
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour < w.EndHour
	}
	return hour >= w.StartHour || hour < w.EndHour
}
