package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpr is a parsed 5-field cron expression:
// minute, hour, day-of-month, month, day-of-week.
type CronExpr struct {
	minute map[int]bool
	hour   map[int]bool
	dom    map[int]bool
	month  map[int]bool
	dow    map[int]bool
}

type cronField struct {
	name     string
	min, max int
}

var cronFields = []cronField{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// ParseCron parses a standard 5-field cron expression. Each field
// accepts *, */N, N, N-M, N-M/S, and comma-separated combinations.
func ParseCron(expr string) (*CronExpr, error) {
	parts := strings.Fields(expr)
	if len(parts) != len(cronFields) {
		return nil, fmt.Errorf("cron: expected %d fields, got %d in %q", len(cronFields), len(parts), expr)
	}

	sets := make([]map[int]bool, len(cronFields))
	for i, field := range cronFields {
		set, err := parseCronField(parts[i], field.min, field.max)
		if err != nil {
			return nil, fmt.Errorf("cron: %s: %w", field.name, err)
		}
		sets[i] = set
	}

	return &CronExpr{minute: sets[0], hour: sets[1], dom: sets[2], month: sets[3], dow: sets[4]}, nil
}

// Matches reports whether t satisfies the expression, at minute
// granularity.
func (c *CronExpr) Matches(t time.Time) bool {
	return c.minute[t.Minute()] &&
		c.hour[t.Hour()] &&
		c.dom[t.Day()] &&
		c.month[int(t.Month())] &&
		c.dow[int(t.Weekday())]
}

// Next returns the first matching time strictly after t, searching up to
// two years ahead. Returns the zero time when nothing matches.
func (c *CronExpr) Next(t time.Time) time.Time {
	cand := t.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(2, 0, 0)

	for cand.Before(limit) {
		switch {
		case !c.month[int(cand.Month())]:
			cand = time.Date(cand.Year(), cand.Month()+1, 1, 0, 0, 0, 0, cand.Location())
		case !c.dom[cand.Day()] || !c.dow[int(cand.Weekday())]:
			cand = time.Date(cand.Year(), cand.Month(), cand.Day()+1, 0, 0, 0, 0, cand.Location())
		case !c.hour[cand.Hour()]:
			cand = time.Date(cand.Year(), cand.Month(), cand.Day(), cand.Hour()+1, 0, 0, 0, cand.Location())
		case !c.minute[cand.Minute()]:
			cand = cand.Add(time.Minute)
		default:
			return cand
		}
	}
	return time.Time{}
}

func parseCronField(field string, min, max int) (map[int]bool, error) {
	set := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		lo, hi, step, err := parseCronPart(part, min, max)
		if err != nil {
			return nil, err
		}
		for v := lo; v <= hi; v += step {
			set[v] = true
		}
	}
	return set, nil
}

// parseCronPart resolves one comma-separated token to a lo/hi/step range.
func parseCronPart(part string, min, max int) (lo, hi, step int, err error) {
	step = 1
	body := part
	if idx := strings.IndexByte(part, '/'); idx >= 0 {
		body = part[:idx]
		step, err = strconv.Atoi(part[idx+1:])
		if err != nil || step <= 0 {
			return 0, 0, 0, fmt.Errorf("invalid step in %q", part)
		}
	}

	switch {
	case body == "*":
		return min, max, step, nil
	case strings.Contains(body, "-"):
		bounds := strings.SplitN(body, "-", 2)
		lo, err = strconv.Atoi(bounds[0])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid range start %q", bounds[0])
		}
		hi, err = strconv.Atoi(bounds[1])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid range end %q", bounds[1])
		}
		if lo < min || hi > max || lo > hi {
			return 0, 0, 0, fmt.Errorf("range %d-%d out of bounds [%d,%d]", lo, hi, min, max)
		}
		return lo, hi, step, nil
	default:
		v, convErr := strconv.Atoi(body)
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("invalid value %q", body)
		}
		if v < min || v > max {
			return 0, 0, 0, fmt.Errorf("value %d out of bounds [%d,%d]", v, min, max)
		}
		return v, v, step, nil
	}
}
