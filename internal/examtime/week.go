package examtime

import (
	"regexp"
	"strconv"
	"time"

	"github.com/teambition/rrule-go"

	appLog "examcal/internal/log"
)

var teachingWeekRe = regexp.MustCompile(`第\s*(\d{1,2})\s*周\s*(?:周|星期)\s*([1-7一二三四五六日天])`)

var weekdayCodes = map[string]string{
	"1": "MO", "一": "MO",
	"2": "TU", "二": "TU",
	"3": "WE", "三": "WE",
	"4": "TH", "四": "TH",
	"5": "FR", "五": "FR",
	"6": "SA", "六": "SA",
	"7": "SU", "日": "SU", "天": "SU",
}

// resolveTeachingWeek maps "第N周周D" to a date. Week 1 is the Monday-based
// week containing semesterStart.
func resolveTeachingWeek(semesterStart time.Time, text string) (time.Time, bool) {
	m := teachingWeekRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	week, err := strconv.Atoi(m[1])
	if err != nil || week < 1 {
		return time.Time{}, false
	}
	day, ok := weekdayCodes[m[2]]
	if !ok {
		return time.Time{}, false
	}

	r, err := rrule.StrToRRule("FREQ=WEEKLY;WKST=MO;BYDAY=" + day + ";COUNT=" + strconv.Itoa(week))
	if err != nil {
		appLog.Error("examtime: failed to build teaching week rule", err, "week", week, "day", day)
		return time.Time{}, false
	}
	r.DTStart(mondayOf(semesterStart))

	occ := r.All()
	if len(occ) != week {
		return time.Time{}, false
	}
	return occ[len(occ)-1], true
}

func mondayOf(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
