package crossref

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursecal/internal/ics"
	"coursecal/internal/match"
	"coursecal/internal/model"
)

var fixedNow = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func ev(start time.Time, end *time.Time, summary, description, location string) model.Event {
	return model.Event{Start: &start, End: end, Summary: summary, Description: description, Location: location}
}

func newTestXRef(cfg match.Config) *CrossReferencer {
	return New(match.New(cfg), WithClock(func() time.Time { return fixedNow }))
}

func TestRunImpliedDeadline(t *testing.T) {
	end := time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)
	events := []model.Event{
		ev(time.Date(2026, 2, 12, 8, 15, 0, 0, time.UTC), &end, "Akustik lab", "", "Studio 1"),
		ev(time.Date(2026, 2, 5, 13, 0, 0, 0, time.UTC), nil, "Akustik", "Föreläsning om rumsakustik", ""),
		ev(time.Date(2026, 2, 7, 13, 0, 0, 0, time.UTC), nil, "Mixning", "", ""),
	}
	assignments := []model.Assignment{
		{ID: 1, Name: "Inlämning 2: Akustik", PointsPossible: ptr(10.0), HTMLURL: ptr("https://canvas.example/a/1")},
	}

	results := newTestXRef(match.Config{}).Run(assignments, events, 30)
	require.Len(t, results, 1)
	r := results[0]

	assert.Equal(t, "Inlämning 2: Akustik", r.Assignment)
	assert.EqualValues(t, 1, r.AssignmentID)
	assert.False(t, r.HasDueDate)
	assert.Nil(t, r.CanvasDueDate)
	require.Len(t, r.MatchedEvents, 2)

	first := r.MatchedEvents[0]
	assert.Equal(t, "2026-02-05", *first.Date)
	assert.Equal(t, "13:00", *first.Time)
	assert.Nil(t, first.EndTime)
	assert.Equal(t, "Föreläsning om rumsakustik", first.Summary, "description preferred over summary")

	last := r.MatchedEvents[1]
	assert.Equal(t, "08:15", *last.Time)
	assert.Equal(t, "10:00", *last.EndTime)
	assert.Equal(t, "Studio 1", last.Location)

	assert.Equal(t, "2026-02-12", r.ImpliedDeadline)
	assert.Equal(t, "Last matching event: Akustik lab", r.ImpliedReason)
}

func TestRunCutoffExcludesLateAndStartlessEvents(t *testing.T) {
	events := []model.Event{
		ev(fixedNow.Add(10*24*time.Hour), nil, "Lab 1", "", ""),
		ev(fixedNow.Add(10*24*time.Hour+time.Second), nil, "Lab 2", "", ""),
		{Summary: "Lab undated"},
	}
	assignments := []model.Assignment{{ID: 1, Name: "Lab"}}

	results := newTestXRef(match.Config{}).Run(assignments, events, 10)
	require.Len(t, results, 1)
	require.Len(t, results[0].MatchedEvents, 1)
	assert.Equal(t, "Lab 1", results[0].MatchedEvents[0].Summary)
}

func TestRunHugeHorizonStillMatches(t *testing.T) {
	events := []model.Event{ev(fixedNow.Add(24*time.Hour), nil, "Lab", "", "")}
	assignments := []model.Assignment{{ID: 1, Name: "Lab"}}

	for _, days := range []int{MaxDaysAhead, 200_000, math.MaxInt} {
		results := newTestXRef(match.Config{}).Run(assignments, events, days)
		require.Len(t, results, 1)
		assert.Len(t, results[0].MatchedEvents, 1, "days=%d", days)
		assert.NotEmpty(t, results[0].ImpliedDeadline, "days=%d", days)
	}
}

func TestCutoffClampsHorizon(t *testing.T) {
	assert.Equal(t, fixedNow.Add(10*24*time.Hour), Cutoff(fixedNow, 10))

	maxCutoff := fixedNow.Add(time.Duration(MaxDaysAhead) * 24 * time.Hour)
	assert.Equal(t, maxCutoff, Cutoff(fixedNow, 200_000))
	assert.Equal(t, maxCutoff, Cutoff(fixedNow, math.MaxInt))
	assert.True(t, Cutoff(fixedNow, math.MinInt).Before(fixedNow))
}

func TestRunTruncation(t *testing.T) {
	long := strings.Repeat("å", 200)
	events := []model.Event{ev(fixedNow.Add(time.Hour), nil, "Lab", long, "")}
	results := newTestXRef(match.Config{}).Run([]model.Assignment{{ID: 1, Name: "Lab"}}, events, 1)

	require.Len(t, results[0].MatchedEvents, 1)
	assert.Equal(t, 120, len([]rune(results[0].MatchedEvents[0].Summary)))
	assert.Equal(t, len([]rune("Last matching event: "))+80, len([]rune(results[0].ImpliedReason)))
}

func TestRunOrdering(t *testing.T) {
	events := []model.Event{
		ev(time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC), nil, "Akustik", "", ""),
		ev(time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC), nil, "Dolby Atmos", "", ""),
	}
	assignments := []model.Assignment{
		{ID: 1, Name: "Quiz", DueAt: ptr("2026-03-01T22:59:00Z")},
		{ID: 2, Name: "Akustik"},
		{ID: 3, Name: "Reflektion"},
		{ID: 4, Name: "Essay", DueAt: ptr("2026-02-10T10:00:00Z")},
		{ID: 5, Name: "Dolby Atmos mix"},
	}

	results := newTestXRef(match.Config{}).Run(assignments, events, 60)
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.AssignmentID)
	}
	assert.Equal(t, []int64{5, 2, 3, 4, 1}, ids)

	assertSortedByEffectiveDate(t, results)
	assertImpliedOnlyWhenUndated(t, results)
}

func TestRunEmptyDueDateCountsAsUndated(t *testing.T) {
	events := []model.Event{ev(fixedNow.Add(time.Hour), nil, "Lab", "", "")}
	results := newTestXRef(match.Config{}).Run([]model.Assignment{{ID: 1, Name: "Lab", DueAt: ptr("")}}, events, 1)

	require.Len(t, results, 1)
	assert.False(t, results[0].HasDueDate)
	assert.NotEmpty(t, results[0].ImpliedDeadline)
	assertImpliedOnlyWhenUndated(t, results)
}

func TestRunDatedAssignmentKeepsMatchesWithoutImpliedDeadline(t *testing.T) {
	events := []model.Event{ev(fixedNow.Add(time.Hour), nil, "Lab", "", "")}
	results := newTestXRef(match.Config{}).Run(
		[]model.Assignment{{ID: 1, Name: "Lab", DueAt: ptr("2026-02-02T12:00:00Z")}}, events, 1)

	require.Len(t, results, 1)
	assert.Len(t, results[0].MatchedEvents, 1)
	assert.Empty(t, results[0].ImpliedDeadline)
	assert.Empty(t, results[0].ImpliedReason)
}

func TestRunWithoutEvents(t *testing.T) {
	due := "2026-02-10T10:00:00Z"
	assignments := []model.Assignment{
		{ID: 1, Name: "Akustik"},
		{ID: 2, Name: "Lab", DueAt: &due},
	}

	results := newTestXRef(match.Config{}).Run(assignments, nil, 30)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Empty(t, r.MatchedEvents)
		assert.Empty(t, r.ImpliedDeadline)
		assert.Empty(t, r.ImpliedReason)
	}
	assert.Equal(t, &due, results[1].CanvasDueDate)

	data, err := json.Marshal(results)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "implied_deadline")
	assert.NotContains(t, string(data), "implied_reason")
	assert.Contains(t, string(data), `"matched_events":[]`)
	assert.Contains(t, string(data), `"canvas_due_date":null`)
}

func TestRunKeywordTableFromParsedFeed(t *testing.T) {
	feed := "BEGIN:VCALENDAR\r\n" +
		"BEGIN:VEVENT\r\nDTSTART:20260210T080000Z\r\nSUMMARY:Digitala mixerbord\\, Dante\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nDTSTART:20260217T080000Z\r\nSUMMARY:Digitala mixerbord\r\n DEL 2\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nDTSTART:20260301T080000Z\r\nSUMMARY:Akustik\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	x := newTestXRef(match.Config{Fallback: match.FallbackDefaultTable})
	results := x.Run([]model.Assignment{{ID: 7, Name: "Signalvägar i Dante"}}, ics.Parse(feed), 20)

	require.Len(t, results, 1)
	assert.Len(t, results[0].MatchedEvents, 2)
	assert.Equal(t, "2026-02-17", results[0].ImpliedDeadline)
	assert.Equal(t, "Last matching event: Digitala mixerbordDEL 2", results[0].ImpliedReason)
}

func TestMergeAssignments(t *testing.T) {
	upcoming := []model.Assignment{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}
	undated := []model.Assignment{{ID: 2, Name: "b (dup)"}, {ID: 3, Name: "c"}}

	merged := MergeAssignments(upcoming, undated)
	require.Len(t, merged, 3)
	assert.Equal(t, "b", merged[1].Name)
	assert.EqualValues(t, 3, merged[2].ID)
}

func assertSortedByEffectiveDate(t *testing.T, results []model.CrossRefResult) {
	t.Helper()
	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		if prev.HasDueDate {
			assert.True(t, cur.HasDueDate, "dated result %d precedes undated result %d", i-1, i)
		}
		if prev.HasDueDate == cur.HasDueDate {
			assert.LessOrEqual(t, prev.EffectiveDate(), cur.EffectiveDate())
		}
	}
}

func assertImpliedOnlyWhenUndated(t *testing.T, results []model.CrossRefResult) {
	t.Helper()
	for _, r := range results {
		want := !r.HasDueDate && len(r.MatchedEvents) > 0
		assert.Equal(t, want, r.ImpliedDeadline != "", "assignment %d", r.AssignmentID)
	}
}
