package ics

import (
	"iter"
	"slices"
	"strings"
	"time"

	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

const (
	lineBeginEvent = "BEGIN:VEVENT"
	lineEndEvent   = "END:VEVENT"
)

// Recognized VEVENT property names. Everything else is ignored.
const (
	propDtStart     = "DTSTART"
	propDtEnd       = "DTEND"
	propSummary     = "SUMMARY"
	propLocation    = "LOCATION"
	propDescription = "DESCRIPTION"
)

var textUnescaper = strings.NewReplacer(
	`\\`, `\`,
	`\,`, `,`,
	`\;`, `;`,
	`\n`, "\n",
	`\N`, "\n",
)

type parseState int

const (
	stateOutside parseState = iota
	stateInEvent
)

// extractor walks logical lines and assembles VEVENT records. While
// stateInEvent, cur holds the partially built event.
type extractor struct {
	state parseState
	cur   model.Event
}

// feed consumes one logical line. It returns the completed event and true
// when the line closes a VEVENT.
func (x *extractor) feed(line string) (model.Event, bool) {
	switch {
	case line == lineBeginEvent:
		if x.state == stateInEvent {
			appLog.Debug("ics: nested BEGIN:VEVENT, discarding partial event", "summary", x.cur.Summary)
		}
		x.state = stateInEvent
		x.cur = model.Event{}
		return model.Event{}, false

	case line == lineEndEvent:
		if x.state != stateInEvent {
			return model.Event{}, false
		}
		ev := x.cur
		x.state = stateOutside
		x.cur = model.Event{}
		return ev, true

	case x.state == stateInEvent:
		x.applyProperty(line)
	}
	return model.Event{}, false
}

// applyProperty interprets a KEY[;params]:VALUE line.
func (x *extractor) applyProperty(line string) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return
	}
	key := line[:colon]
	if semi := strings.IndexByte(key, ';'); semi >= 0 {
		key = key[:semi]
	}
	val := line[colon+1:]

	switch key {
	case propDtStart:
		x.cur.Start = decodeOptional(key, val)
	case propDtEnd:
		x.cur.End = decodeOptional(key, val)
	case propSummary:
		x.cur.Summary = textUnescaper.Replace(val)
	case propLocation:
		x.cur.Location = textUnescaper.Replace(val)
	case propDescription:
		x.cur.Description = textUnescaper.Replace(val)
	}
}

func decodeOptional(key, val string) *time.Time {
	t, ok := DecodeDateTime(val)
	if !ok {
		appLog.Debug("ics: undecodable date value", "key", key, "value", val)
		return nil
	}
	return &t
}

// Events lazily yields the VEVENTs of an ICS document in source order.
// Malformed fragments are skipped; the sequence is finite and each call to
// the returned iterator re-parses text.
func Events(text string) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		var x extractor
		for _, line := range Lines(text) {
			if ev, done := x.feed(line); done {
				if !yield(ev) {
					return
				}
			}
		}
	}
}

// Parse returns all VEVENTs of an ICS document.
func Parse(text string) []model.Event {
	events := slices.Collect(Events(text))
	if events == nil {
		events = []model.Event{}
	}
	return events
}
