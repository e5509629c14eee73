package ics

import (
	"errors"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"examcal/internal/apperr"
	"examcal/internal/model"
)

func sampleRecord() model.ExamRecord {
	return model.ExamRecord{
		CourseName: "高等数学",
		Teacher:    "张三",
		Date:       "2025-04-23",
		StartTime:  "13:30",
		EndTime:    "15:20",
		Location:   "教1-101",
	}
}

func fixedEncoder() *Encoder {
	return &Encoder{
		UIDDomain: "exam.example.edu",
		Now:       func() time.Time { return time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC) },
	}
}

func encodeRecords(t *testing.T, p Profile, recs ...model.ExamRecord) *Document {
	t.Helper()
	events, err := Builder{AlarmLead: APIAlarmLead}.BuildAll(recs)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	doc, err := fixedEncoder().Encode(events, p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return doc
}

func TestBuild(t *testing.T) {
	ev, err := Builder{AlarmLead: APIAlarmLead}.Build(sampleRecord())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if ev.Title != "考试 高等数学" {
		t.Errorf("Title = %q", ev.Title)
	}
	if ev.Description != "课程: 高等数学\n任课教师: 张三\n考试地点: 教1-101" {
		t.Errorf("Description = %q", ev.Description)
	}
	if ev.Category != "考试" {
		t.Errorf("Category = %q", ev.Category)
	}
	wantStart := time.Date(2025, 4, 23, 13, 30, 0, 0, Shanghai)
	if !ev.Start.Equal(wantStart) || ev.End.Sub(ev.Start) != 110*time.Minute {
		t.Errorf("Start/End = %v/%v", ev.Start, ev.End)
	}
	if ev.Alarm.Lead != time.Hour || !strings.Contains(ev.Alarm.Description, "60分钟") || !strings.Contains(ev.Alarm.Description, "教1-101") {
		t.Errorf("Alarm = %+v", ev.Alarm)
	}

	batch, err := Builder{AlarmLead: BatchAlarmLead}.Build(sampleRecord())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(batch.Alarm.Description, "24小时") {
		t.Errorf("batch alarm description = %q", batch.Alarm.Description)
	}
}

func TestBuildMalformed(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*model.ExamRecord)
		field string
	}{
		{"empty start", func(r *model.ExamRecord) { r.StartTime = "" }, "startTime"},
		{"empty end", func(r *model.ExamRecord) { r.EndTime = "" }, "endTime"},
		{"empty date", func(r *model.ExamRecord) { r.Date = "" }, "date"},
		{"bad date", func(r *model.ExamRecord) { r.Date = "2025-13-40" }, "date"},
		{"out of range hour", func(r *model.ExamRecord) { r.StartTime = "25:00" }, "startTime"},
		{"end before start", func(r *model.ExamRecord) { r.EndTime = "12:00" }, "endTime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sampleRecord()
			tt.edit(&rec)
			_, err := Builder{}.Build(rec)

			var mte *MalformedTimeError
			if !errors.As(err, &mte) {
				t.Fatalf("err = %v, want *MalformedTimeError", err)
			}
			if mte.Field != tt.field {
				t.Errorf("Field = %q, want %q", mte.Field, tt.field)
			}
			if apperr.KindOf(err) != apperr.MalformedTime {
				t.Errorf("KindOf = %v, want MalformedTime", apperr.KindOf(err))
			}
		})
	}
}

func TestBuildAllFailsWholeBatch(t *testing.T) {
	bad := sampleRecord()
	bad.StartTime = ""
	events, err := Builder{}.BuildAll([]model.ExamRecord{sampleRecord(), bad})
	if events != nil {
		t.Errorf("no events may be returned on failure, got %d", len(events))
	}
	var mte *MalformedTimeError
	if !errors.As(err, &mte) || mte.Index != 1 {
		t.Fatalf("err = %v, want MalformedTimeError at index 1", err)
	}
}

func TestEncodeStructure(t *testing.T) {
	second := sampleRecord()
	second.CourseName = "大学英语"
	second.Date = "2025-05-10"
	doc := encodeRecords(t, ProfileDefault, sampleRecord(), second)
	body := string(doc.Body)

	if got := strings.Count(body, "DTSTART;TZID=Asia/Shanghai:"); got != 2 {
		t.Errorf("DTSTART;TZID count = %d, want 2 (one per event)", got)
	}
	if got := strings.Count(body, "DTEND;TZID=Asia/Shanghai:"); got != 2 {
		t.Errorf("DTEND;TZID count = %d, want 2", got)
	}
	if got := strings.Count(body, "BEGIN:VTIMEZONE"); got != 1 {
		t.Errorf("VTIMEZONE count = %d, want 1", got)
	}
	if strings.Index(body, "BEGIN:VTIMEZONE") > strings.Index(body, "BEGIN:VEVENT") {
		t.Error("VTIMEZONE must precede the first VEVENT")
	}
	if got := strings.Count(body, "\nUID:"); got != 2 {
		t.Errorf("UID count = %d, want 2", got)
	}
	for _, want := range []string{
		"DTSTART;TZID=Asia/Shanghai:20250423T133000",
		"DTEND;TZID=Asia/Shanghai:20250423T152000",
		"TZOFFSETFROM:+0800",
		"TZOFFSETTO:+0800",
		"METHOD:PUBLISH",
		"CALSCALE:GREGORIAN",
		"X-WR-TIMEZONE:Asia/Shanghai",
		"TRIGGER:-PT1H",
		"ACTION:DISPLAY",
		"PRODID:" + DefaultProductID,
		"@exam.example.edu",
	} {
		if !strings.Contains(Unfold(body), want) {
			t.Errorf("output missing %q", want)
		}
	}
	if doc.Events != 2 || doc.ContentLength() != len(doc.Body) {
		t.Errorf("Events = %d, ContentLength = %d, len = %d", doc.Events, doc.ContentLength(), len(doc.Body))
	}
}

func TestEncodeLineLength(t *testing.T) {
	rec := sampleRecord()
	rec.CourseName = strings.Repeat("非常长的课程名称", 12)
	rec.Location = strings.Repeat("综合教学楼A座", 10)
	body := string(encodeRecords(t, ProfileDefault, rec).Body)

	if !strings.HasSuffix(body, "\r\n") {
		t.Error("document must end with CRLF")
	}
	for i, line := range strings.Split(strings.TrimSuffix(body, "\r\n"), "\r\n") {
		if len(line) > 75 {
			t.Errorf("line %d is %d octets: %q", i, len(line), line)
		}
		if strings.Contains(line, "\n") {
			t.Errorf("line %d has a bare LF", i)
		}
	}

	d, err := Decode([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(d.Events[0].Summary, rec.CourseName) {
		t.Errorf("folded summary did not survive decoding: %q", d.Events[0].Summary)
	}
}

func TestEncodeIOSProfile(t *testing.T) {
	enc := fixedEncoder()
	enc.IOSProductID = "-//Apple Inc.//iOS 18.0//EN"
	events, err := Builder{}.BuildAll([]model.ExamRecord{sampleRecord(), sampleRecord()})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := enc.Encode(events, ProfileIOS)
	if err != nil {
		t.Fatal(err)
	}

	d, err := Decode(doc.Body)
	if err != nil {
		t.Fatal(err)
	}
	if d.ProductID != "-//Apple Inc.//iOS 18.0//EN" {
		t.Errorf("PRODID = %q", d.ProductID)
	}
	for _, ev := range d.Events {
		if !strings.HasPrefix(ev.UID, "1743494400000-") || !strings.HasSuffix(ev.UID, "@exam.example.edu") {
			t.Errorf("UID = %q, want <millis>-<random>@exam.example.edu", ev.UID)
		}
	}
	if d.Events[0].UID == d.Events[1].UID {
		t.Error("UIDs must be unique")
	}
}

func TestEncodeEmptyBatch(t *testing.T) {
	if _, err := fixedEncoder().Encode(nil, ProfileDefault); apperr.KindOf(err) != apperr.Validation {
		t.Errorf("err = %v, want a validation error", err)
	}
	_, err := fixedEncoder().Encode([]CalendarEvent{{Title: "x"}}, ProfileDefault)
	if apperr.KindOf(err) != apperr.Encoding {
		t.Errorf("err = %v, want an encoding error", err)
	}
}

func TestFold(t *testing.T) {
	long := "DESCRIPTION:" + strings.Repeat("考", 40)
	folded := Fold("BEGIN:VCALENDAR\n" + long + "\nEND:VCALENDAR\n")

	lines := strings.Split(strings.TrimSuffix(folded, "\r\n"), "\r\n")
	if len(lines) < 4 {
		t.Fatalf("expected the long line to fold, got %q", folded)
	}
	for i, l := range lines {
		if len(l) > 75 {
			t.Errorf("line %d is %d octets", i, len(l))
		}
		if i > 1 && i < len(lines)-1 && !strings.HasPrefix(l, " ") {
			t.Errorf("continuation line %d lacks a leading space: %q", i, l)
		}
	}
	if lines[1] == "" || len(lines[1]) > 74 {
		t.Errorf("leading chunk is %d octets", len(lines[1]))
	}
	if Unfold(folded) != "BEGIN:VCALENDAR\r\n"+long+"\r\nEND:VCALENDAR\r\n" {
		t.Errorf("unfold did not restore the input: %q", Unfold(folded))
	}
	if again := Fold(folded); again != folded {
		t.Error("Fold is not idempotent")
	}

	exact := strings.Repeat("a", 75)
	if Fold(exact) != exact+"\r\n" {
		t.Error("a 75-octet line must not be folded")
	}
}

func TestEncodeTextEscaping(t *testing.T) {
	rec := sampleRecord()
	rec.CourseName = "线性代数;A"
	rec.Location = "教1-101, 教1-102"
	events, err := Builder{AlarmLead: APIAlarmLead}.BuildAll([]model.ExamRecord{rec})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := fixedEncoder().Encode(events, ProfileDefault)
	if err != nil {
		t.Fatal(err)
	}
	body := Unfold(string(doc.Body))

	for _, want := range []string{
		`SUMMARY:考试 线性代数\;A`,
		`DESCRIPTION:课程: 线性代数\;A\n任课教师: 张三\n考试地点: 教1-101\, 教1-102`,
		`LOCATION:教1-101\, 教1-102`,
	} {
		if !strings.Contains(body, want+"\r\n") {
			t.Errorf("output missing line %q", want)
		}
	}
	for _, bad := range []string{`\\n`, `\\,`, `\\;`} {
		if strings.Contains(body, bad) {
			t.Errorf("output contains double escape %q", bad)
		}
	}

	d, err := Decode(doc.Body)
	if err != nil {
		t.Fatal(err)
	}
	got := d.Events[0]
	if ical.FromText(got.Description) != events[0].Description {
		t.Errorf("DESCRIPTION round trip = %q, want %q", ical.FromText(got.Description), events[0].Description)
	}
	if ical.FromText(got.Location) != rec.Location {
		t.Errorf("LOCATION round trip = %q, want %q", ical.FromText(got.Location), rec.Location)
	}
	if ical.FromText(got.Summary) != events[0].Title {
		t.Errorf("SUMMARY round trip = %q, want %q", ical.FromText(got.Summary), events[0].Title)
	}
}

func TestTriggerValue(t *testing.T) {
	tests := []struct {
		lead time.Duration
		want string
	}{
		{time.Hour, "-PT1H"},
		{24 * time.Hour, "-PT24H"},
		{30 * time.Minute, "-PT30M"},
		{90 * time.Minute, "-PT90M"},
		{90 * time.Second, "-PT90S"},
		{500 * time.Millisecond, "-PT1S"},
		{0, "-PT1H"},
	}
	for _, tt := range tests {
		if got := triggerValue(tt.lead); got != tt.want {
			t.Errorf("triggerValue(%v) = %q, want %q", tt.lead, got, tt.want)
		}
	}
}

func TestLeadText(t *testing.T) {
	tests := []struct {
		lead time.Duration
		want string
	}{
		{time.Hour, "60分钟"},
		{24 * time.Hour, "24小时"},
		{90 * time.Minute, "90分钟"},
		{90 * time.Second, "90秒"},
	}
	for _, tt := range tests {
		if got := leadText(tt.lead); got != tt.want {
			t.Errorf("leadText(%v) = %q, want %q", tt.lead, got, tt.want)
		}
	}
}

func TestDetectProfile(t *testing.T) {
	tests := []struct {
		ua, hint string
		want     Profile
	}{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", "", ProfileIOS},
		{"Mozilla/5.0 (Linux; Android 14)", "", ProfileDefault},
		{"Mozilla/5.0 (Linux; Android 14)", "ios", ProfileIOS},
		{"Mozilla/5.0 (iPad; CPU OS 17_0)", "default", ProfileDefault},
		{"", "bogus", ProfileDefault},
	}
	for _, tt := range tests {
		if got := DetectProfile(tt.ua, tt.hint); got != tt.want {
			t.Errorf("DetectProfile(%q, %q) = %v, want %v", tt.ua, tt.hint, got, tt.want)
		}
	}
}
