package model

import (
	"strings"
	"time"
)

// Event is a single VEVENT extracted from a schedule feed. Any field may be
// absent; Start and End are nil when the value was missing or could not be
// decoded. Events are produced by one parse pass and never mutated.
type Event struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`

	Summary     string `json:"summary,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// Text returns the lower-cased "summary description" haystack used for
// matching.
func (e Event) Text() string {
	return strings.ToLower(e.Summary + " " + e.Description)
}

// Label prefers the description over the summary.
func (e Event) Label() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Summary
}

// Assignment is a course assignment as supplied by the course-data
// collaborator. DueAt is an ISO-8601 string; nil or empty means undated.
type Assignment struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	DueAt          *string  `json:"due_at,omitempty"`
	PointsPossible *float64 `json:"points_possible,omitempty"`
	HTMLURL        *string  `json:"html_url,omitempty"`
}

// HasDueDate reports whether the assignment carries an explicit due date.
func (a Assignment) HasDueDate() bool {
	return a.DueAt != nil && *a.DueAt != ""
}

// KeywordPair links an assignment-name keyword to an event-text keyword.
type KeywordPair struct {
	Assignment string `yaml:"assignment" json:"assignment"`
	Event      string `yaml:"event" json:"event"`
}

// MatchedEvent is the JSON view of an event attached to a CrossRefResult.
type MatchedEvent struct {
	Date     *string `json:"date"`
	Time     *string `json:"time"`
	EndTime  *string `json:"end_time"`
	Summary  string  `json:"summary"`
	Location string  `json:"location"`
}

// CrossRefResult is one assignment with its related schedule events.
// ImpliedDeadline is set only when the assignment has no due date and at
// least one event matched.
type CrossRefResult struct {
	Assignment      string         `json:"assignment"`
	AssignmentID    int64          `json:"assignment_id"`
	CanvasDueDate   *string        `json:"canvas_due_date"`
	HasDueDate      bool           `json:"has_due_date"`
	PointsPossible  *float64       `json:"points_possible"`
	HTMLURL         *string        `json:"html_url"`
	MatchedEvents   []MatchedEvent `json:"matched_events"`
	ImpliedDeadline string         `json:"implied_deadline,omitempty"`
	ImpliedReason   string         `json:"implied_reason,omitempty"`
}

// EffectiveDate is the ISO date used for ordering: the implied deadline,
// else the date portion of the due date, else "9999".
func (r CrossRefResult) EffectiveDate() string {
	if r.ImpliedDeadline != "" {
		return r.ImpliedDeadline
	}
	if r.CanvasDueDate != nil && *r.CanvasDueDate != "" {
		d := *r.CanvasDueDate
		if len(d) > 10 {
			d = d[:10]
		}
		return d
	}
	return "9999"
}
