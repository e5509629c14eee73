package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Warning describes a field the parser could not fill. Warnings keep a
// legitimately blank cell distinguishable from one that failed to parse.
type Warning struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warning codes.
const (
	WarnEmptyText    = "empty_text"
	WarnDateMissing  = "date_missing"
	WarnTimeMissing  = "time_missing"
	WarnDateFromWeek = "date_from_week"
)

// ExamRecord is one normalized row of the exam schedule.
//
// Date is YYYY-MM-DD, StartTime/EndTime are zero-padded HH:MM. Any of them
// may be empty, which means unknown and never midnight.
type ExamRecord struct {
	CourseName   string     `json:"courseName"`
	Teacher      string     `json:"teacher"`
	Date         string     `json:"date"`
	StartTime    string     `json:"startTime"`
	EndTime      string     `json:"endTime"`
	Location     string     `json:"location"`
	StudentCount FlexString `json:"studentCount,omitempty"`
	Warnings     []Warning  `json:"warnings,omitempty"`
}

// HasSchedule reports whether date and both times are known.
func (r ExamRecord) HasSchedule() bool {
	return r.Date != "" && r.StartTime != "" && r.EndTime != ""
}

// FlexString accepts either a JSON string or a JSON number. Spreadsheet
// headcounts arrive as both depending on the client.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}
