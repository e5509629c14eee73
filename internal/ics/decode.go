package ics

import (
	"bytes"
	"errors"
	"fmt"

	ical "github.com/arran4/golang-ical"
)

// DecodedEvent is the subset of a VEVENT that the encoder guarantees.
type DecodedEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Category    string

	Start   string // local DATE-TIME value
	End     string
	StartTZ string
	EndTZ   string

	Trigger string
}

// Decoded is a parsed calendar plus the structure checks Verify relies on.
type Decoded struct {
	ProductID string
	Timezones int
	Events    []DecodedEvent
}

// Decode parses an ICS payload with golang-ical.
func Decode(body []byte) (*Decoded, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	out := &Decoded{}
	for _, p := range cal.CalendarProperties {
		if p.IANAToken == string(ical.PropertyProductId) {
			out.ProductID = p.Value
		}
	}
	for _, c := range cal.Components {
		if _, ok := c.(*ical.VTimezone); ok {
			out.Timezones++
		}
	}
	for _, ve := range cal.Events() {
		out.Events = append(out.Events, decodeVEvent(ve))
	}
	return out, nil
}

func decodeVEvent(ve *ical.VEvent) DecodedEvent {
	var out DecodedEvent

	value := func(p ical.ComponentProperty) string {
		if prop := ve.GetProperty(p); prop != nil {
			return prop.Value
		}
		return ""
	}
	out.UID = value(ical.ComponentPropertyUniqueId)
	out.Summary = value(ical.ComponentPropertySummary)
	out.Description = value(ical.ComponentPropertyDescription)
	out.Location = value(ical.ComponentPropertyLocation)
	out.Category = value(ical.ComponentPropertyCategories)

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		out.Start = p.Value
		out.StartTZ = tzidOf(p)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		out.End = p.Value
		out.EndTZ = tzidOf(p)
	}

	if alarms := ve.Alarms(); len(alarms) > 0 {
		if p := alarms[0].GetProperty(ical.ComponentPropertyTrigger); p != nil {
			out.Trigger = p.Value
		}
	}
	return out
}

func tzidOf(p *ical.IANAProperty) string {
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		return tzs[0]
	}
	return ""
}

// Verify checks that body parses back with the expected structure: a
// single VTIMEZONE, want events, each with a UID and TZID-qualified
// start and end.
func Verify(body []byte, want int) error {
	d, err := Decode(body)
	if err != nil {
		return err
	}
	if d.Timezones != 1 {
		return fmt.Errorf("expected 1 VTIMEZONE, found %d", d.Timezones)
	}
	if len(d.Events) != want {
		return fmt.Errorf("expected %d events, decoded %d", want, len(d.Events))
	}
	seen := make(map[string]bool, len(d.Events))
	for i, ev := range d.Events {
		switch {
		case ev.UID == "":
			return fmt.Errorf("event %d: missing UID", i)
		case seen[ev.UID]:
			return fmt.Errorf("event %d: duplicate UID %s", i, ev.UID)
		case ev.StartTZ != TZID || ev.EndTZ != TZID:
			return fmt.Errorf("event %d: DTSTART/DTEND not in %s", i, TZID)
		}
		seen[ev.UID] = true
	}
	return nil
}
