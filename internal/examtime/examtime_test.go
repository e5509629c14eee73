package examtime

import (
	"testing"
	"time"

	"examcal/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		date      string
		startTime string
		endTime   string
	}{
		{"week layout", "第10周周3(2025-04-23) 13:30-15:20", "2025-04-23", "13:30", "15:20"},
		{"chinese date layout", "2025年05月10日 (10:25-12:15)", "2025-05-10", "10:25", "12:15"},
		{"single digit hours", "2025年06月01日 8:00-9:50", "2025-06-01", "08:00", "09:50"},
		{"mixed digit hours", "(2025-06-02) 9:30-11:20", "2025-06-02", "09:30", "11:20"},
		{"unrecognized", "TBD", "", "", ""},
		{"date without time", "(2025-01-09) 待定", "2025-01-09", "", ""},
		{"time without date", "周五 14:00-16:00", "", "14:00", "16:00"},
		{"bare iso date is not a known layout", "2025-01-09 14:00-16:00", "", "14:00", "16:00"},
		{"iso date wins over chinese date", "2025年05月10日(2025-05-11) 10:25-12:15", "2025-05-11", "10:25", "12:15"},
		{"hours are not range checked", "(2025-01-09) 25:00-26:30", "2025-01-09", "25:00", "26:30"},
		{"empty", "   ", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if got.Date != tt.date || got.StartTime != tt.startTime || got.EndTime != tt.endTime {
				t.Errorf("Parse(%q) = {%q %q %q}, want {%q %q %q}",
					tt.text, got.Date, got.StartTime, got.EndTime, tt.date, tt.startTime, tt.endTime)
			}
		})
	}
}

func TestParseWarnings(t *testing.T) {
	codes := func(r Result) map[string]bool {
		m := make(map[string]bool)
		for _, w := range r.Warnings {
			m[w.Code] = true
		}
		return m
	}

	if w := codes(Parse("第10周周3(2025-04-23) 13:30-15:20")); len(w) != 0 {
		t.Errorf("well-formed text should carry no warnings, got %v", w)
	}

	w := codes(Parse("TBD"))
	if !w[model.WarnDateMissing] || !w[model.WarnTimeMissing] {
		t.Errorf("TBD should warn about date and time, got %v", w)
	}

	w = codes(Parse(""))
	if !w[model.WarnEmptyText] || len(w) != 1 {
		t.Errorf("empty text should carry only %s, got %v", model.WarnEmptyText, w)
	}
}

func TestParseTeachingWeek(t *testing.T) {
	p := Parser{SemesterStart: time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC)}

	tests := []struct {
		text string
		date string
	}{
		{"第10周周3 13:30-15:20", "2025-04-23"},
		{"第1周周1 08:00-09:40", "2025-02-17"},
		{"第1周周日 08:00-09:40", "2025-02-23"},
		{"第2周星期五 08:00-09:40", "2025-02-28"},
		// An explicit date always beats the week fallback.
		{"第10周周3(2025-04-24) 13:30-15:20", "2025-04-24"},
	}
	for _, tt := range tests {
		got := p.Parse(tt.text)
		if got.Date != tt.date {
			t.Errorf("Parse(%q).Date = %q, want %q", tt.text, got.Date, tt.date)
		}
	}

	got := p.Parse("第10周周3 13:30-15:20")
	found := false
	for _, w := range got.Warnings {
		if w.Code == model.WarnDateFromWeek {
			found = true
		}
	}
	if !found {
		t.Error("week-derived date should be flagged")
	}
}

func TestParseTeachingWeekSemesterMidweek(t *testing.T) {
	// Semester starting on a Wednesday still counts its own week as week 1.
	p := Parser{SemesterStart: time.Date(2025, 2, 19, 0, 0, 0, 0, time.UTC)}
	if got := p.Parse("第1周周1 08:00-09:40").Date; got != "2025-02-17" {
		t.Errorf("got %q, want 2025-02-17", got)
	}
}

func TestParseWithoutSemesterIgnoresWeek(t *testing.T) {
	if got := Parse("第10周周3 13:30-15:20").Date; got != "" {
		t.Errorf("week form must not resolve without a semester start, got %q", got)
	}
}
