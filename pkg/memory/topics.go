package memory

import (
	"sort"
	"strings"
)

// stopwords excluded from topic extraction. Short function words carry no
// topical signal.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "this": {}, "with": {},
	"you": {}, "your": {}, "have": {}, "has": {}, "was": {}, "are": {},
	"but": {}, "not": {}, "what": {}, "when": {}, "where": {}, "how": {},
	"why": {}, "who": {}, "can": {}, "just": {}, "like": {}, "about": {},
	"from": {}, "they": {}, "them": {}, "would": {}, "could": {},
	"should": {}, "there": {}, "here": {}, "then": {}, "than": {},
	"its": {}, "it's": {}, "i'm": {}, "don't": {}, "doesn't": {},
	"really": {}, "very": {}, "also": {}, "been": {}, "being": {},
	"were": {}, "will": {}, "into": {}, "over": {}, "only": {},
	"some": {}, "more": {}, "most": {}, "because": {},
}

// ExtractTopics returns up to max frequent terms from the given turns.
// Purely local term counting; no model call involved.
func ExtractTopics(turns []Turn, max int) []string {
	if max <= 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, t := range turns {
		for _, word := range strings.Fields(strings.ToLower(t.Text)) {
			word = strings.Trim(word, ".,!?;:\"'()[]{}<>*_~")
			if len(word) < 4 {
				continue
			}
			if _, skip := stopwords[word]; skip {
				continue
			}
			counts[word]++
		}
	}

	type termCount struct {
		term  string
		count int
	}
	terms := make([]termCount, 0, len(counts))
	for term, count := range counts {
		if count < 2 {
			continue
		}
		terms = append(terms, termCount{term, count})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].count != terms[j].count {
			return terms[i].count > terms[j].count
		}
		return terms[i].term < terms[j].term
	})

	if len(terms) > max {
		terms = terms[:max]
	}
	out := make([]string, 0, len(terms))
	for _, tc := range terms {
		out = append(out, tc.term)
	}
	return out
}
