// Package crossref relates course assignments to schedule events and infers
// a deadline for assignments that have none.
package crossref

import (
	"slices"
	"strings"
	"time"

	"coursecal/internal/match"
	"coursecal/internal/model"
)

const (
	DefaultDaysAhead = 30

	// MaxDaysAhead keeps days*24h inside time.Duration; larger horizons are
	// clamped to it.
	MaxDaysAhead = 100_000

	summaryMaxLen      = 120
	reasonMaxLen       = 80
	impliedReasonLabel = "Last matching event: "

	dateLayout = time.DateOnly
	timeLayout = "15:04"
)

// CrossReferencer is stateless apart from its matcher and clock; one value
// may serve concurrent calls.
type CrossReferencer struct {
	matcher *match.Matcher
	now     func() time.Time
}

// Option customizes a CrossReferencer.
type Option func(*CrossReferencer)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(x *CrossReferencer) { x.now = now }
}

// New returns a CrossReferencer using m. A nil m selects fuzzy matching.
func New(m *match.Matcher, opts ...Option) *CrossReferencer {
	if m == nil {
		m = match.New(match.Config{})
	}
	x := &CrossReferencer{matcher: m, now: time.Now}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Run matches every assignment against the events starting no later than
// daysAhead days from now and returns one result per assignment. Undated
// assignments come first; each group is ordered by effective date.
func (x *CrossReferencer) Run(assignments []model.Assignment, events []model.Event, daysAhead int) []model.CrossRefResult {
	candidates := Upcoming(events, Cutoff(x.now(), daysAhead))

	results := make([]model.CrossRefResult, 0, len(assignments))
	for _, a := range assignments {
		matched := x.matcher.Match(a.Name, candidates)
		results = append(results, buildResult(a, matched))
	}

	SortResults(results)
	return results
}

// Cutoff returns now plus daysAhead whole days, with daysAhead clamped to
// [-MaxDaysAhead, MaxDaysAhead].
func Cutoff(now time.Time, daysAhead int) time.Time {
	daysAhead = max(-MaxDaysAhead, min(daysAhead, MaxDaysAhead))
	return now.Add(time.Duration(daysAhead) * 24 * time.Hour)
}

// Upcoming returns the events whose start is at or before cutoff. Events
// without a start are dropped.
func Upcoming(events []model.Event, cutoff time.Time) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.Start != nil && !ev.Start.After(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

func buildResult(a model.Assignment, matched []model.Event) model.CrossRefResult {
	r := model.CrossRefResult{
		Assignment:     a.Name,
		AssignmentID:   a.ID,
		CanvasDueDate:  a.DueAt,
		HasDueDate:     a.HasDueDate(),
		PointsPossible: a.PointsPossible,
		HTMLURL:        a.HTMLURL,
		MatchedEvents:  make([]model.MatchedEvent, 0, len(matched)),
	}

	for _, ev := range matched {
		me := model.MatchedEvent{
			Summary:  truncate(ev.Label(), summaryMaxLen),
			Location: ev.Location,
		}
		if ev.Start != nil {
			me.Date = formatPtr(*ev.Start, dateLayout)
			me.Time = formatPtr(*ev.Start, timeLayout)
		}
		if ev.End != nil {
			me.EndTime = formatPtr(*ev.End, timeLayout)
		}
		r.MatchedEvents = append(r.MatchedEvents, me)
	}

	if !r.HasDueDate && len(matched) > 0 {
		last := matched[len(matched)-1]
		if last.Start != nil {
			r.ImpliedDeadline = last.Start.UTC().Format(dateLayout)
			r.ImpliedReason = impliedReasonLabel + truncate(last.Label(), reasonMaxLen)
		}
	}
	return r
}

// SortResults orders results in place: undated before dated, then by
// effective date compared as plain strings (ISO dates sort lexically).
func SortResults(results []model.CrossRefResult) {
	slices.SortStableFunc(results, func(a, b model.CrossRefResult) int {
		if a.HasDueDate != b.HasDueDate {
			if a.HasDueDate {
				return 1
			}
			return -1
		}
		return strings.Compare(a.EffectiveDate(), b.EffectiveDate())
	})
}

// MergeAssignments concatenates assignment lists, keeping the first
// occurrence of each id.
func MergeAssignments(lists ...[]model.Assignment) []model.Assignment {
	seen := make(map[int64]struct{})
	var out []model.Assignment
	for _, list := range lists {
		for _, a := range list {
			if _, dup := seen[a.ID]; dup {
				continue
			}
			seen[a.ID] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

func formatPtr(t time.Time, layout string) *string {
	s := t.UTC().Format(layout)
	return &s
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
