package match

import "coursecal/internal/model"

// StopWords is an immutable set of words ignored by fuzzy matching.
type StopWords map[string]struct{}

// NewStopWords builds a StopWords set. Words are expected in lower case.
func NewStopWords(words ...string) StopWords {
	s := make(StopWords, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s StopWords) Contains(w string) bool {
	_, ok := s[w]
	return ok
}

// DefaultStopWords holds generic Swedish and English filler plus words that
// occur in nearly every assignment title.
var DefaultStopWords = NewStopWords(
	"och", "med", "för", "den", "det", "att", "som", "har", "till",
	"the", "and", "for", "with", "from", "this", "that",
	"inlämning", "uppgift", "assignment", "task", "submission",
)

// DefaultKeywordTable links recurring assignment topics of an audio
// engineering programme to the wording used in its TimeEdit schedule.
var DefaultKeywordTable = []model.KeywordPair{
	{Assignment: "dante", Event: "digitala mixerbord"},
	{Assignment: "signalvagar", Event: "digitala mixerbord"},
	{Assignment: "signalvägar", Event: "digitala mixerbord"},
	{Assignment: "akustik", Event: "akustik"},
	{Assignment: "loudness", Event: "equal loudness"},
	{Assignment: "immersiv", Event: "immersiv"},
	{Assignment: "spatialt", Event: "immersiv"},
	{Assignment: "dolby atmos", Event: "dolby atmos"},
	{Assignment: "aes", Event: "aes"},
	{Assignment: "ai inom", Event: "ai"},
	{Assignment: "seminarium", Event: "seminarium"},
	{Assignment: "mixning", Event: "mix"},
	{Assignment: "lab", Event: "lab"},
}
