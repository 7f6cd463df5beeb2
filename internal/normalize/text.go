package normalize

import (
	"strings"
	"unicode"
)

// tokenize lowercases s and splits it into words. Anything that is not a
// letter, digit or apostrophe separates words, so "stick-pack" and
// "sure, why not" split the way a reader would expect.
func tokenize(s string) []string {
	s = strings.ToLower(strings.ReplaceAll(s, "’", "'"))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// term is a keyword of one or more words. The last word also matches its
// plural ("pod" matches "pods"); a stem matches any word it prefixes.
type term struct {
	words []string
	stem  bool
}

// parseTerm compiles "stick pack" or "hydrat*".
func parseTerm(s string) term {
	s = strings.TrimSpace(s)
	stem := strings.HasSuffix(s, "*")
	return term{words: tokenize(strings.TrimSuffix(s, "*")), stem: stem}
}

func parseTerms(ss ...string) []term {
	out := make([]term, 0, len(ss))
	for _, s := range ss {
		out = append(out, parseTerm(s))
	}
	return out
}

func (t term) matchLast(word string) bool {
	last := t.words[len(t.words)-1]
	if t.stem {
		return strings.HasPrefix(word, last)
	}
	return word == last || word == last+"s" || word == last+"es"
}

// find returns the index of the first occurrence of t in hay.
func (t term) find(hay []string) int {
	n := len(t.words)
	if n == 0 {
		return -1
	}
	for i := 0; i+n <= len(hay); i++ {
		ok := true
		for j := 0; j < n-1; j++ {
			if hay[i+j] != t.words[j] {
				ok = false
				break
			}
		}
		if ok && t.matchLast(hay[i+n-1]) {
			return i
		}
	}
	return -1
}

// containsPhrase reports whether phrase occurs in hay as a whole-word
// sequence. This covers the exact, prefix, suffix and infix cases at once.
func containsPhrase(hay, phrase []string) bool {
	n := len(phrase)
	if n == 0 || n > len(hay) {
		return false
	}
	for i := 0; i+n <= len(hay); i++ {
		match := true
		for j := range phrase {
			if hay[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// bareReply lowercases s, collapses whitespace and strips trailing
// punctuation, for whole-utterance comparisons.
func bareReply(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(s, "’", "'"))), " ")
	return strings.TrimRight(s, "!?.")
}
