package gate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger decides which wall-clock minutes may open the gate. Matching is
// minute-exact; a minute the process was not ticking is simply missed.
type Trigger struct {
	loc *time.Location

	weekday      time.Weekday
	hour, minute int

	spec  string
	sched cron.Schedule
}

func NewWeekly(weekday, hhmm string, loc *time.Location) (Trigger, error) {
	wd, err := ParseWeekday(weekday)
	if err != nil {
		return Trigger{}, err
	}
	h, m, err := ParseClock(hhmm)
	if err != nil {
		return Trigger{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	return Trigger{loc: loc, weekday: wd, hour: h, minute: m}, nil
}

// NewCron accepts a standard 5-field cron expression.
func NewCron(spec string, loc *time.Location) (Trigger, error) {
	sched, err := cron.ParseStandard(strings.TrimSpace(spec))
	if err != nil {
		return Trigger{}, fmt.Errorf("parse cron %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return Trigger{loc: loc, spec: spec, sched: sched}, nil
}

func (t Trigger) Location() *time.Location { return t.loc }

// Day is the calendar day of now in the trigger's timezone.
func (t Trigger) Day(now time.Time) string {
	return now.In(t.loc).Format("2006-01-02")
}

func (t Trigger) Matches(now time.Time) bool {
	local := now.In(t.loc)
	if t.sched != nil {
		minute := local.Truncate(time.Minute)
		return t.sched.Next(minute.Add(-time.Second)).Equal(minute)
	}
	return local.Weekday() == t.weekday && local.Hour() == t.hour && local.Minute() == t.minute
}

func (t Trigger) String() string {
	if t.sched != nil {
		return fmt.Sprintf("cron %q (%s)", t.spec, t.loc)
	}
	return fmt.Sprintf("%s %02d:%02d (%s)", t.weekday, t.hour, t.minute, t.loc)
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func ParseClock(s string) (int, int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	h, err1 := strconv.Atoi(hs)
	m, err2 := strconv.Atoi(ms)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	return h, m, nil
}
