package normalize

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxFlavors is the stick pack flavor limit.
const maxFlavors = 2

const (
	noFlavor      = "None"
	defaultFlavor = "Mango"
)

// DefaultFlavors is the stick pack flavor vocabulary.
var DefaultFlavors = []string{
	"mango", "sour cherry", "watermelon", "strawberry banana", "root beer",
	"green apple", "fruit punch", "ice pop", "gummy bear", "blue raspberry",
	"pineapple", "strawberry", "raspberry", "orange", "lemon", "lime",
	"lemonade", "cotton candy", "bubble gum", "pink lemonade", "coconut", "banana",
}

type flavorHit struct {
	pos, length int
	name        string
}

// scanFlavors finds flavor names in hay in order of appearance. Longer
// names win over names they contain, so "pink lemonade" is not also read
// as "lemonade".
func scanFlavors(hay []string, vocab [][]string) []string {
	var hits []flavorHit
	for _, words := range vocab {
		n := len(words)
		for i := 0; i+n <= len(hay); i++ {
			if containsPhrase(hay[i:i+n], words) {
				hits = append(hits, flavorHit{pos: i, length: n, name: strings.Join(words, " ")})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].length > hits[j].length
	})

	var out []string
	end := 0
	for _, h := range hits {
		if h.pos < end {
			continue
		}
		out = append(out, h.name)
		end = h.pos + h.length
	}
	return out
}

// pickFlavors merges candidate lists in order, dropping duplicates, and
// caps the result at maxFlavors title-cased names.
func pickFlavors(lists ...[]string) []string {
	caser := cases.Title(language.English)
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, name := range list {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, caser.String(name))
			if len(out) == maxFlavors {
				return out
			}
		}
	}
	return out
}
