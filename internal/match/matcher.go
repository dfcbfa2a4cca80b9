package match

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"coursecal/internal/model"
)

// Fallback selects what a Matcher does when no keyword pairs are configured.
type Fallback string

const (
	// FallbackFuzzy matches on significant words shared with the event text.
	FallbackFuzzy Fallback = "fuzzy"
	// FallbackDefaultTable uses DefaultKeywordTable (or Config.DefaultTable).
	FallbackDefaultTable Fallback = "default-table"
)

const (
	minTokenLen         = 3
	manyTokens          = 4
	manyTokensThreshold = 2
	fewTokensThreshold  = 1
	noStartDedupKey     = "none"
)

// Config selects the matching strategy.
type Config struct {
	// Keywords, when non-empty, selects explicit keyword-pair matching.
	Keywords []model.KeywordPair
	// Fallback applies when Keywords is empty. Zero value means FallbackFuzzy.
	Fallback Fallback
	// DefaultTable overrides DefaultKeywordTable for FallbackDefaultTable.
	DefaultTable []model.KeywordPair
	// StopWords overrides DefaultStopWords for fuzzy matching.
	StopWords StopWords
}

// Matcher relates an assignment name to calendar events. It holds no
// mutable state and is safe for concurrent use.
type Matcher struct {
	keywords  []model.KeywordPair
	stopWords StopWords
}

// New resolves cfg into a Matcher. Keyword pairs are lower-cased once here;
// pairs with an empty side are dropped before the fallback policy applies,
// so a list holding only empty pairs behaves like no list at all.
func New(cfg Config) *Matcher {
	m := &Matcher{
		keywords:  normalizePairs(cfg.Keywords),
		stopWords: cfg.StopWords,
	}
	if m.stopWords == nil {
		m.stopWords = DefaultStopWords
	}
	if len(m.keywords) == 0 && cfg.Fallback == FallbackDefaultTable {
		table := cfg.DefaultTable
		if len(table) == 0 {
			table = DefaultKeywordTable
		}
		m.keywords = normalizePairs(table)
	}
	return m
}

func normalizePairs(pairs []model.KeywordPair) []model.KeywordPair {
	var out []model.KeywordPair
	for _, p := range pairs {
		if p.Assignment == "" || p.Event == "" {
			continue
		}
		out = append(out, model.KeywordPair{
			Assignment: strings.ToLower(p.Assignment),
			Event:      strings.ToLower(p.Event),
		})
	}
	return out
}

// Fuzzy reports whether m matches by word overlap rather than keyword pairs.
func (m *Matcher) Fuzzy() bool {
	return len(m.keywords) == 0
}

// Match returns the events related to assignmentName, without duplicate
// start instants, ordered by start (absent start sorts as the epoch).
func (m *Matcher) Match(assignmentName string, events []model.Event) []model.Event {
	name := strings.ToLower(assignmentName)

	var matches []model.Event
	if m.Fuzzy() {
		matches = m.matchFuzzy(name, events)
	} else {
		matches = m.matchKeywords(name, events)
	}
	return dedupAndSort(matches)
}

func (m *Matcher) matchKeywords(name string, events []model.Event) []model.Event {
	var out []model.Event
	for _, kw := range m.keywords {
		if !strings.Contains(name, kw.Assignment) {
			continue
		}
		for _, ev := range events {
			if strings.Contains(ev.Text(), kw.Event) {
				out = append(out, ev)
			}
		}
	}
	return out
}

func (m *Matcher) matchFuzzy(name string, events []model.Event) []model.Event {
	words := m.Tokens(name)
	if len(words) == 0 {
		return nil
	}

	threshold := fewTokensThreshold
	if len(words) >= manyTokens {
		threshold = manyTokensThreshold
	}

	var out []model.Event
	for _, ev := range events {
		text := ev.Text()
		n := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				n++
			}
		}
		if n >= threshold {
			out = append(out, ev)
		}
	}
	return out
}

// Tokens splits an assignment name into the significant words
// used by fuzzy matching: at least three characters and not a stop word.
// Duplicates are kept.
func (m *Matcher) Tokens(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), isSeparator)
	words := fields[:0]
	for _, w := range fields {
		if utf8.RuneCountInString(w) < minTokenLen || m.stopWords.Contains(w) {
			continue
		}
		words = append(words, w)
	}
	return words
}

func isSeparator(r rune) bool {
	switch r {
	case ':', ',', '-', '–', '—', '(', ')':
		return true
	}
	return unicode.IsSpace(r)
}

func dedupAndSort(matches []model.Event) []model.Event {
	seen := make(map[string]struct{}, len(matches))
	unique := make([]model.Event, 0, len(matches))
	for _, ev := range matches {
		key := noStartDedupKey
		if ev.Start != nil {
			key = strconv.FormatInt(ev.Start.UnixMilli(), 10)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, ev)
	}

	slices.SortStableFunc(unique, func(a, b model.Event) int {
		return cmp.Compare(startMillis(a), startMillis(b))
	})
	return unique
}

func startMillis(ev model.Event) int64 {
	if ev.Start == nil {
		return 0
	}
	return ev.Start.UnixMilli()
}
