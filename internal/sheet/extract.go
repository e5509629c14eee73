package sheet

import (
	"strings"

	"examcal/internal/examtime"
	"examcal/internal/model"
)

// RawRow maps header text to cell text for one spreadsheet row.
type RawRow map[string]string

// Filter selects rows belonging to one class.
type Filter struct {
	ClassID string
	// Strict disables the whole-row fallback scan, so only the bound class
	// column is consulted.
	Strict bool
}

// Match reports whether row belongs to the class. The class column is the
// precise path; when it is unbound or blank for this row the filter falls
// back to any cell containing the id, unless Strict is set.
func (f Filter) Match(cols ColumnMap, row RawRow) bool {
	if f.ClassID == "" {
		return false
	}
	if cols.Class != "" {
		if v := row[cols.Class]; v != "" {
			return strings.Contains(v, f.ClassID)
		}
	}
	if f.Strict {
		return false
	}
	for _, v := range row {
		if strings.Contains(v, f.ClassID) {
			return true
		}
	}
	return false
}

// Extractor turns raw rows into exam records.
type Extractor struct {
	Parser examtime.Parser
}

func (e *Extractor) Extract(cols ColumnMap, row RawRow) model.ExamRecord {
	cell := func(header string) string {
		if header == "" {
			return ""
		}
		return strings.TrimSpace(row[header])
	}

	parsed := e.Parser.Parse(cell(cols.ExamTime))

	return model.ExamRecord{
		CourseName:   cell(cols.CourseName),
		Teacher:      cell(cols.Teacher),
		Date:         parsed.Date,
		StartTime:    parsed.StartTime,
		EndTime:      parsed.EndTime,
		Location:     cell(cols.ExamRoom),
		StudentCount: model.FlexString(cell(cols.StudentCount)),
		Warnings:     parsed.Warnings,
	}
}

// Search resolves columns once for the table and extracts every row that
// passes the filter, in sheet order.
func (e *Extractor) Search(t *Table, f Filter) []model.ExamRecord {
	out := make([]model.ExamRecord, 0)
	for _, row := range t.Rows {
		if f.Match(t.Columns, row) {
			out = append(out, e.Extract(t.Columns, row))
		}
	}
	return out
}
