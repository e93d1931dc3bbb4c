package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// ActivityAgent detects daily routines by clustering activity records on
// their hour of day. Entries that recur in the same hour across several
// days form a routine.
type ActivityAgent struct {
	source ActivitySource
}

// NewActivityAgent creates the activity agent. The source is required.
func NewActivityAgent(source ActivitySource) (*ActivityAgent, error) {
	if source == nil {
		return nil, Fatal(fmt.Errorf("activity agent: no source configured"))
	}
	return &ActivityAgent{source: source}, nil
}

func (a *ActivityAgent) ID() string    { return "activity" }
func (a *ActivityAgent) Topic() string { return "activity" }

// Run analyzes the current activity records and reports detected
// routines plus the total record count.
func (a *ActivityAgent) Run(ctx context.Context) (map[string]any, error) {
	records, err := a.source.Activities(ctx)
	if err != nil {
		return nil, Transient(fmt.Errorf("activity agent: fetch: %w", err))
	}
	if len(records) == 0 {
		return map[string]any{"routines": map[string]any{}, "total_activities": 0}, nil
	}

	routines := detectRoutines(records)
	slog.Info("Activity analysis complete", "routines", len(routines), "records", len(records))

	return map[string]any{
		"routines":         routines,
		"total_activities": len(records),
	}, nil
}

// detectRoutines groups records by hour of day and keeps groups that
// recur on at least two distinct days.
func detectRoutines(records []ActivityRecord) map[string]any {
	type cluster struct {
		names map[string]int
		days  map[string]bool
		count int
	}
	byHour := make(map[int]*cluster)
	for _, rec := range records {
		hour := rec.At.Hour()
		c := byHour[hour]
		if c == nil {
			c = &cluster{names: make(map[string]int), days: make(map[string]bool)}
			byHour[hour] = c
		}
		c.names[rec.Name]++
		c.days[rec.At.Format("2006-01-02")] = true
		c.count++
	}

	routines := make(map[string]any)
	id := 0
	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	for _, hour := range hours {
		c := byHour[hour]
		if len(c.days) < 2 {
			continue
		}
		names := make([]string, 0, len(c.names))
		for name := range c.names {
			names = append(names, name)
		}
		sort.Strings(names)
		routines[fmt.Sprintf("routine_%d", id)] = map[string]any{
			"typical_hour": hour,
			"activities":   names,
			"occurrences":  c.count,
		}
		id++
	}
	return routines
}
