// Package examtime extracts a calendar date and a start/end time pair from
// the loosely formatted "exam time" cells of a schedule spreadsheet.
//
// Known layouts:
//
//	第10周周3(2025-04-23) 13:30-15:20
//	2025年05月10日 (10:25-12:15)
//
// Extraction never fails. Fields that cannot be recovered are left empty and
// reported through Result.Warnings.
package examtime

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"examcal/internal/model"
)

var (
	isoDateRe   = regexp.MustCompile(`\((\d{4}-\d{2}-\d{2})\)`)
	cnDateRe    = regexp.MustCompile(`(\d{4})年(\d{2})月(\d{2})日`)
	timeRangeRe = regexp.MustCompile(`(\d{1,2}):(\d{2})-(\d{1,2}):(\d{2})`)
)

// Result holds the extracted fields. Date and times are independent: a
// cell may yield a date without times or the other way round.
type Result struct {
	Date      string
	StartTime string
	EndTime   string
	Warnings  []model.Warning
}

// Parser turns exam-time text into a Result. The zero value understands
// the two explicit date layouts only.
type Parser struct {
	// SemesterStart enables resolving "第N周周D" cells that carry no
	// explicit date. Zero disables it.
	SemesterStart time.Time
}

// Parse is a convenience for (&Parser{}).Parse.
func Parse(text string) Result {
	var p Parser
	return p.Parse(text)
}

func (p *Parser) Parse(text string) Result {
	var res Result

	text = strings.TrimSpace(text)
	if text == "" {
		res.Warnings = append(res.Warnings, model.Warning{
			Field:   "examTime",
			Code:    model.WarnEmptyText,
			Message: "exam time cell is empty",
		})
		return res
	}

	res.Date = p.parseDate(text, &res)
	res.StartTime, res.EndTime = parseTimeRange(text)
	if res.StartTime == "" {
		res.Warnings = append(res.Warnings, model.Warning{
			Field:   "startTime",
			Code:    model.WarnTimeMissing,
			Message: fmt.Sprintf("no H:MM-H:MM range in %q", text),
		})
	}

	return res
}

func (p *Parser) parseDate(text string, res *Result) string {
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := cnDateRe.FindStringSubmatch(text); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}

	if !p.SemesterStart.IsZero() {
		if d, ok := resolveTeachingWeek(p.SemesterStart, text); ok {
			res.Warnings = append(res.Warnings, model.Warning{
				Field:   "date",
				Code:    model.WarnDateFromWeek,
				Message: fmt.Sprintf("date derived from teaching week relative to %s", p.SemesterStart.Format("2006-01-02")),
			})
			return d.Format("2006-01-02")
		}
	}

	res.Warnings = append(res.Warnings, model.Warning{
		Field:   "date",
		Code:    model.WarnDateMissing,
		Message: fmt.Sprintf("no recognizable date in %q", text),
	})
	return ""
}

// parseTimeRange returns zero-padded HH:MM values. Hours are not range
// checked; the calendar builder rejects impossible values.
func parseTimeRange(text string) (string, string) {
	m := timeRangeRe.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	return padHour(m[1]) + ":" + m[2], padHour(m[3]) + ":" + m[4]
}

func padHour(h string) string {
	if len(h) == 1 {
		return "0" + h
	}
	return h
}
