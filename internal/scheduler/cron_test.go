package scheduler

import (
	"testing"
	"time"
)

func TestParseCronValid(t *testing.T) {
	exprs := []string{
		"* * * * *",
		"*/5 * * * *",
		"0 0 * * *",
		"30 4 1,15 * *",
		"0 0 1 1 0",
		"0-30/5 9-17 * * 1-5",
	}
	for _, expr := range exprs {
		if _, err := ParseCron(expr); err != nil {
			t.Errorf("ParseCron(%q) returned error: %v", expr, err)
		}
	}
}

func TestParseCronInvalid(t *testing.T) {
	exprs := []string{
		"",
		"* * * *",
		"* * * * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
	}
	for _, expr := range exprs {
		if _, err := ParseCron(expr); err == nil {
			t.Errorf("ParseCron(%q) accepted invalid expression", expr)
		}
	}
}

func TestCronMatches(t *testing.T) {
	tests := []struct {
		expr string
		t    time.Time
		want bool
	}{
		{"* * * * *", time.Date(2026, 8, 29, 12, 30, 0, 0, time.UTC), true},
		{"30 12 * * *", time.Date(2026, 8, 29, 12, 30, 0, 0, time.UTC), true},
		{"30 12 * * *", time.Date(2026, 8, 29, 12, 31, 0, 0, time.UTC), false},
		{"*/15 * * * *", time.Date(2026, 8, 29, 12, 45, 0, 0, time.UTC), true},
		{"*/15 * * * *", time.Date(2026, 8, 29, 12, 50, 0, 0, time.UTC), false},
		// 2026-08-29 is a Saturday (weekday 6).
		{"* * * * 6", time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), true},
		{"* * * * 1-5", time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), false},
		{"0 9 1 * *", time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range tests {
		c, err := ParseCron(tc.expr)
		if err != nil {
			t.Fatalf("ParseCron(%q): %v", tc.expr, err)
		}
		if got := c.Matches(tc.t); got != tc.want {
			t.Errorf("Matches(%q, %s) = %v, want %v", tc.expr, tc.t, got, tc.want)
		}
	}
}

func TestCronNext(t *testing.T) {
	from := time.Date(2026, 8, 29, 12, 30, 45, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"* * * * *", time.Date(2026, 8, 29, 12, 31, 0, 0, time.UTC)},
		{"0 * * * *", time.Date(2026, 8, 29, 13, 0, 0, 0, time.UTC)},
		{"0 0 * * *", time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)},
		{"0 9 1 * *", time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)},
		// Next Monday after Saturday the 29th.
		{"0 8 * * 1", time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		c, err := ParseCron(tc.expr)
		if err != nil {
			t.Fatalf("ParseCron(%q): %v", tc.expr, err)
		}
		if got := c.Next(from); !got.Equal(tc.want) {
			t.Errorf("Next(%q) = %s, want %s", tc.expr, got, tc.want)
		}
	}
}
