package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"coursecal/internal/model"
)

const exportProductID = "-//coursecal//deadlines//EN"

// ExportDeadlines renders cross-reference results as an ICS feed so the
// inferred deadlines can be subscribed to from any calendar client.
//
// Each result with an implied deadline becomes an all-day event on that
// date. Results with an explicit due date become a timed event when the due
// date is RFC 3339, otherwise an all-day event on its date portion. Results
// with neither are skipped.
func ExportDeadlines(results []model.CrossRefResult, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(exportProductID)

	for _, r := range results {
		start, allDay, ok := deadlineInstant(r)
		if !ok {
			continue
		}

		ev := cal.AddEvent(fmt.Sprintf("assignment-%d@coursecal", r.AssignmentID))
		ev.SetDtStampTime(now.UTC())
		if allDay {
			ev.SetAllDayStartAt(start)
			ev.SetAllDayEndAt(start.AddDate(0, 0, 1))
		} else {
			ev.SetStartAt(start)
			ev.SetEndAt(start)
		}
		ev.SetSummary(r.Assignment)
		if r.ImpliedReason != "" {
			ev.SetDescription(r.ImpliedReason)
		}
		if r.HTMLURL != nil && *r.HTMLURL != "" {
			ev.SetURL(*r.HTMLURL)
		}
	}

	return cal.Serialize()
}

func deadlineInstant(r model.CrossRefResult) (t time.Time, allDay bool, ok bool) {
	if r.ImpliedDeadline != "" {
		d, err := time.Parse(time.DateOnly, r.ImpliedDeadline)
		return d, true, err == nil
	}
	if r.CanvasDueDate == nil || *r.CanvasDueDate == "" {
		return time.Time{}, false, false
	}
	if due, err := time.Parse(time.RFC3339, *r.CanvasDueDate); err == nil {
		return due.UTC(), false, true
	}
	d, err := time.Parse(time.DateOnly, r.EffectiveDate())
	return d, true, err == nil
}
