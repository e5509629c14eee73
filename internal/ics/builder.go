package ics

import (
	"fmt"
	"strings"
	"time"

	"examcal/internal/apperr"
	"examcal/internal/model"
)

// TZID is the only timezone exams are scheduled in.
const TZID = "Asia/Shanghai"

// Shanghai carries the wall-clock offset for TZID. China has not observed
// DST since 1991, so a fixed zone is exact and needs no tzdata.
var Shanghai = time.FixedZone("CST", 8*60*60)

const (
	DefaultCategory = "考试"
	// APIAlarmLead and BatchAlarmLead are the reminder lead times of the
	// HTTP and batch generation paths.
	APIAlarmLead   = 60 * time.Minute
	BatchAlarmLead = 24 * time.Hour
)

// Alarm is a display reminder fired Lead before the event starts.
type Alarm struct {
	Lead        time.Duration
	Description string
}

// CalendarEvent is one exam ready for encoding. Start and End are wall-clock
// times in Shanghai.
type CalendarEvent struct {
	Title       string
	Description string
	Location    string
	Category    string
	Start       time.Time
	End         time.Time
	Alarm       Alarm
}

// MalformedTimeError reports a record whose date or time fields cannot
// produce a concrete event.
type MalformedTimeError struct {
	Index int // position in the batch, -1 for a single build
	Field string
	Value string
	Err   error
}

func (e *MalformedTimeError) Error() string {
	prefix := ""
	if e.Index >= 0 {
		prefix = fmt.Sprintf("record %d: ", e.Index)
	}
	if e.Err != nil {
		return fmt.Sprintf("%smalformed %s %q: %v", prefix, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("%smalformed %s %q", prefix, e.Field, e.Value)
}

func (e *MalformedTimeError) Unwrap() error { return e.Err }

func (e *MalformedTimeError) Kind() apperr.Kind { return apperr.MalformedTime }

// Builder converts exam records into calendar events.
type Builder struct {
	AlarmLead time.Duration
	Category  string
}

func (b Builder) Build(rec model.ExamRecord) (CalendarEvent, error) {
	ev, err := b.build(rec)
	if err != nil {
		err.Index = -1
		return CalendarEvent{}, err
	}
	return ev, nil
}

// BuildAll converts every record or none: the first malformed record fails
// the whole batch.
func (b Builder) BuildAll(recs []model.ExamRecord) ([]CalendarEvent, error) {
	out := make([]CalendarEvent, 0, len(recs))
	for i, rec := range recs {
		ev, err := b.build(rec)
		if err != nil {
			err.Index = i
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (b Builder) build(rec model.ExamRecord) (CalendarEvent, *MalformedTimeError) {
	date := strings.TrimSpace(rec.Date)
	if date == "" {
		return CalendarEvent{}, &MalformedTimeError{Field: "date", Value: rec.Date}
	}
	if _, err := time.ParseInLocation("2006-01-02", date, Shanghai); err != nil {
		return CalendarEvent{}, &MalformedTimeError{Field: "date", Value: rec.Date, Err: err}
	}

	start, merr := wallClock(date, "startTime", rec.StartTime)
	if merr != nil {
		return CalendarEvent{}, merr
	}
	end, merr := wallClock(date, "endTime", rec.EndTime)
	if merr != nil {
		return CalendarEvent{}, merr
	}
	if !end.After(start) {
		return CalendarEvent{}, &MalformedTimeError{
			Field: "endTime",
			Value: rec.EndTime,
			Err:   fmt.Errorf("ends at or before start %s", rec.StartTime),
		}
	}

	category := b.Category
	if category == "" {
		category = DefaultCategory
	}
	lead := b.AlarmLead
	if lead <= 0 {
		lead = APIAlarmLead
	}

	return CalendarEvent{
		Title:       "考试 " + rec.CourseName,
		Description: fmt.Sprintf("课程: %s\n任课教师: %s\n考试地点: %s", rec.CourseName, rec.Teacher, rec.Location),
		Location:    rec.Location,
		Category:    category,
		Start:       start,
		End:         end,
		Alarm: Alarm{
			Lead:        lead,
			Description: fmt.Sprintf("%s考试将在%s后开始，考试地点：%s", rec.CourseName, leadText(lead), rec.Location),
		},
	}, nil
}

func wallClock(date, field, hm string) (time.Time, *MalformedTimeError) {
	hm = strings.TrimSpace(hm)
	if hm == "" {
		return time.Time{}, &MalformedTimeError{Field: field, Value: hm}
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hm, Shanghai)
	if err != nil {
		return time.Time{}, &MalformedTimeError{Field: field, Value: hm, Err: err}
	}
	return t, nil
}

// leadText renders a lead time for people: whole hours from two hours up,
// then whole minutes, then seconds.
func leadText(d time.Duration) string {
	switch {
	case d >= 2*time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%d小时", int(d/time.Hour))
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d分钟", int(d/time.Minute))
	}
	return fmt.Sprintf("%d秒", max(int(d/time.Second), 1))
}
