package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnfold(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf space", "SUMMARY:Foo\r\n Bar", "SUMMARY:FooBar"},
		{"crlf tab", "SUMMARY:Foo\r\n\tBar", "SUMMARY:FooBar"},
		{"lf space", "SUMMARY:Foo\n Bar", "SUMMARY:FooBar"},
		{"only one space consumed", "SUMMARY:Foo\n  Bar", "SUMMARY:Foo Bar"},
		{"no folding", "A:1\r\nB:2", "A:1\r\nB:2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Unfold(tt.in))
		})
	}
}

func TestUnfoldIdempotent(t *testing.T) {
	in := "BEGIN:VEVENT\r\nSUMMARY:Lab\r\n 1 and more\r\nEND:VEVENT\r\n"
	once := Unfold(in)
	assert.Equal(t, once, Unfold(once))
}

func TestLinesMixedEndings(t *testing.T) {
	lines := Lines("A:1\r\nB:2\nC:3\r\n")
	assert.Equal(t, []string{"A:1", "B:2", "C:3", ""}, lines)
}

func TestParseSingleEvent(t *testing.T) {
	events := Parse("BEGIN:VEVENT\nDTSTART:20260220T083000Z\nSUMMARY:Lab 1\nEND:VEVENT")
	require.Len(t, events, 1)

	ev := events[0]
	require.NotNil(t, ev.Start)
	assert.True(t, ev.Start.Equal(time.Date(2026, 2, 20, 8, 30, 0, 0, time.UTC)))
	assert.Equal(t, "Lab 1", ev.Summary)
	assert.Nil(t, ev.End)
	assert.Empty(t, ev.Description)
}

func TestParseFullEventCRLF(t *testing.T) {
	text := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:abc@example\r\n" +
		"DTSTART;TZID=Europe/Stockholm:20260301T101500\r\n" +
		"DTEND;VALUE=DATE-TIME:20260301T120000Z\r\n" +
		"SUMMARY:Föreläsning\\, Akustik\r\n" +
		"LOCATION:Sal A\\, Hus 2\r\n" +
		"DESCRIPTION:Rumsakustik och\\nefterklang i en mycket lång beskrivnin\r\n" +
		" g som viks\r\n" +
		"X-CUSTOM;FOO=bar:ignored\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	events := Parse(text)
	require.Len(t, events, 1)
	ev := events[0]

	require.NotNil(t, ev.Start)
	require.NotNil(t, ev.End)
	assert.True(t, ev.Start.Equal(time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)))
	assert.True(t, ev.End.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Föreläsning, Akustik", ev.Summary)
	assert.Equal(t, "Sal A, Hus 2", ev.Location)
	assert.Equal(t, "Rumsakustik och\nefterklang i en mycket lång beskrivning som viks", ev.Description)
}

func TestParseEscapes(t *testing.T) {
	events := Parse("BEGIN:VEVENT\nSUMMARY:Foo\\,bar\\nBaz\nDESCRIPTION:a\\;b\\\\nc\nEND:VEVENT")
	require.Len(t, events, 1)
	assert.Equal(t, "Foo,bar\nBaz", events[0].Summary)
	assert.Equal(t, `a;b\nc`, events[0].Description)
}

func TestParseDateOnly(t *testing.T) {
	events := Parse("BEGIN:VEVENT\nDTSTART;VALUE=DATE:20260220\nEND:VEVENT")
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Start)
	assert.True(t, events[0].Start.Equal(time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)))
}

func TestParseMalformedFragments(t *testing.T) {
	text := "END:VEVENT\n" +
		"SUMMARY:outside\n" +
		"BEGIN:VEVENT\n" +
		"DTSTART:garbage\n" +
		"DTEND:2026\n" +
		"no colon here\n" +
		"SUMMARY:kept\n" +
		"END:VEVENT\n" +
		"BEGIN:VEVENT\n" +
		"SUMMARY:never closed\n"

	events := Parse(text)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].Start)
	assert.Nil(t, events[0].End)
	assert.Equal(t, "kept", events[0].Summary)
}

func TestParseNestedBeginRestarts(t *testing.T) {
	text := "BEGIN:VEVENT\n" +
		"SUMMARY:first\n" +
		"LOCATION:Room 1\n" +
		"BEGIN:VEVENT\n" +
		"SUMMARY:second\n" +
		"END:VEVENT\n"

	events := Parse(text)
	require.Len(t, events, 1)
	assert.Equal(t, "second", events[0].Summary)
	assert.Empty(t, events[0].Location, "partial record must be discarded")
}

func TestParseEmpty(t *testing.T) {
	events := Parse("")
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestEventsStopsEarly(t *testing.T) {
	text := "BEGIN:VEVENT\nSUMMARY:a\nEND:VEVENT\nBEGIN:VEVENT\nSUMMARY:b\nEND:VEVENT\n"

	var seen []string
	for ev := range Events(text) {
		seen = append(seen, ev.Summary)
		break
	}
	assert.Equal(t, []string{"a"}, seen)
}

func TestDecodeDateTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"20260220T083000Z", time.Date(2026, 2, 20, 8, 30, 0, 0, time.UTC), true},
		{"20260220T083000", time.Date(2026, 2, 20, 8, 30, 0, 0, time.UTC), true},
		{"20260220", time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), true},
		{" 20260220 ", time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"2026022", time.Time{}, false},
		{"20261340T083000Z", time.Time{}, false},
		{"tomorrow", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := DecodeDateTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(tt.want), "got %s", got)
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}
