package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"examcal/internal/apperr"
	appLog "examcal/internal/log"
)

const (
	DefaultProductID    = "-//examcal//Exam Schedule Export//ZH"
	DefaultIOSProductID = "-//Apple Inc.//iOS 17.0//EN"
	DefaultUIDDomain    = "examcal.local"

	localLayout = "20060102T150405"
)

// Document is an encoded calendar ready to be served.
type Document struct {
	Body    []byte
	Events  int
	Profile Profile
}

// ContentLength is the exact byte length of Body.
func (d *Document) ContentLength() int { return len(d.Body) }

// Encoder renders calendar events as an RFC 5545 document. The zero value
// is usable.
type Encoder struct {
	ProductID    string
	IOSProductID string
	UIDDomain    string
	Now          func() time.Time
}

// Encode builds the calendar structurally in one pass: one VTIMEZONE ahead
// of the events, TZID on every DTSTART/DTEND and exactly one UID per event.
// The folded result is parsed back before it is returned; any failure fails
// the whole batch.
func (e *Encoder) Encode(events []CalendarEvent, profile Profile) (*Document, error) {
	if len(events) == 0 {
		return nil, apperr.New(apperr.Validation, "没有可导出的考试安排")
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	stamp := now().UTC()

	cal := ical.NewCalendar()
	cal.SetProductId(e.productID(profile))
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRTimezone(TZID)

	addShanghaiTimezone(cal)

	tzParam := &ical.KeyValues{Key: "TZID", Value: []string{TZID}}
	for i, ev := range events {
		if ev.Start.IsZero() || ev.End.IsZero() {
			return nil, apperr.New(apperr.Encoding, fmt.Sprintf("第 %d 条考试缺少时间", i+1))
		}

		vev := cal.AddEvent(e.uid(profile, stamp))
		vev.SetDtStampTime(stamp)
		vev.SetProperty(ical.ComponentPropertyDtStart, ev.Start.In(Shanghai).Format(localLayout), tzParam)
		vev.SetProperty(ical.ComponentPropertyDtEnd, ev.End.In(Shanghai).Format(localLayout), tzParam)
		vev.SetSummary(ev.Title)
		vev.SetDescription(ev.Description)
		if ev.Location != "" {
			vev.SetLocation(ev.Location)
		}
		if ev.Category != "" {
			vev.SetProperty(ical.ComponentPropertyCategories, ev.Category)
		}

		alarm := vev.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetProperty(ical.ComponentPropertyTrigger, triggerValue(ev.Alarm.Lead))
		alarm.SetDescription(ev.Alarm.Description)
	}

	body := Fold(cal.Serialize())

	if err := Verify([]byte(body), len(events)); err != nil {
		appLog.Error("ics verification failed", err, "events", len(events), "profile", profile)
		return nil, apperr.Wrap(apperr.Encoding, "日历文件生成失败", err)
	}

	return &Document{
		Body:    []byte(body),
		Events:  len(events),
		Profile: profile,
	}, nil
}

func (e *Encoder) productID(p Profile) string {
	if p == ProfileIOS {
		if e.IOSProductID != "" {
			return e.IOSProductID
		}
		return DefaultIOSProductID
	}
	if e.ProductID != "" {
		return e.ProductID
	}
	return DefaultProductID
}

// uid returns a random UUID for most clients. iOS gets the
// millis-random form its calendar import expects.
func (e *Encoder) uid(p Profile, stamp time.Time) string {
	domain := e.UIDDomain
	if domain == "" {
		domain = DefaultUIDDomain
	}
	if p == ProfileIOS {
		random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
		return fmt.Sprintf("%d-%s@%s", stamp.UnixMilli(), random, domain)
	}
	return uuid.NewString() + "@" + domain
}

func addShanghaiTimezone(cal *ical.Calendar) {
	tz := ical.NewTimezone(TZID)
	cal.AddVTimezone(tz)
	std := tz.AddStandard()
	std.SetProperty(ical.ComponentProperty("TZOFFSETFROM"), "+0800")
	std.SetProperty(ical.ComponentProperty("TZOFFSETTO"), "+0800")
	std.SetProperty(ical.ComponentProperty("TZNAME"), "CST")
	std.SetProperty(ical.ComponentPropertyDtStart, "19700101T000000")
}

// triggerValue renders a negative DURATION in the largest whole unit of
// hours, minutes or seconds. Sub-second remainders are dropped.
func triggerValue(lead time.Duration) string {
	if lead <= 0 {
		lead = APIAlarmLead
	}
	switch {
	case lead%time.Hour == 0:
		return fmt.Sprintf("-PT%dH", int(lead/time.Hour))
	case lead%time.Minute == 0:
		return fmt.Sprintf("-PT%dM", int(lead/time.Minute))
	}
	return fmt.Sprintf("-PT%dS", max(int(lead/time.Second), 1))
}
