// Package normalize turns free-text answers into canonical form values.
//
// A user answer runs through a fixed chain of strategies: a confirmation
// shortcut, slot keyword extraction on the user's words, extraction from the
// previous bot message when the answer was non-committal, and finally
// pass-through of the trimmed text.
package normalize

import (
	"math/rand"
	"strings"

	"formula-agent/internal/domain"
)

const (
	noneValue         = "None"
	noPreferenceValue = "No preference"
)

// Normalizer is stateless apart from its random source and safe for
// concurrent use when that source is.
type Normalizer struct {
	intn  func(n int) int
	vocab [][]string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithRandom replaces the random source used to pick a goal.
func WithRandom(intn func(n int) int) Option {
	return func(n *Normalizer) {
		if intn != nil {
			n.intn = intn
		}
	}
}

// WithFlavors replaces the flavor vocabulary.
func WithFlavors(names []string) Option {
	return func(n *Normalizer) {
		if len(names) > 0 {
			n.vocab = tokenizeAll(names)
		}
	}
}

// New returns a Normalizer with the default vocabulary.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		intn:  rand.Intn,
		vocab: tokenizeAll(DefaultFlavors),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// answer is the per-call input shared by the strategies.
type answer struct {
	original  string
	tokens    []string
	slot      domain.SlotKey
	previous  *domain.Turn
	botText   string
	botTokens []string
	forbidden bool
}

// strategy returns a canonical value or false to defer to the next one.
type strategy func(n *Normalizer, a answer) (string, bool)

var chain = []strategy{
	(*Normalizer).confirmPending,
	(*Normalizer).slotKeywords,
	(*Normalizer).fromBotMessage,
}

// Normalize maps an utterance answering slot to the value to store.
// previous is the bot turn the user is replying to and may be nil.
func (n *Normalizer) Normalize(utterance string, slot domain.SlotKey, previous *domain.Turn) string {
	a := answer{
		original: strings.TrimSpace(utterance),
		tokens:   tokenize(utterance),
		slot:     slot,
		previous: previous,
	}
	a.forbidden = isForbidden(utterance)
	if previous != nil {
		a.botText = strings.TrimSpace(previous.Text)
		a.botTokens = tokenize(a.botText)
	}

	for _, s := range chain {
		if v, ok := s(n, a); ok {
			return v
		}
	}
	return a.original
}

func (n *Normalizer) confirmPending(a answer) (string, bool) {
	pending, ok := a.previous.PendingValue()
	if !ok || !IsConfirmation(a.original) {
		return "", false
	}
	return pending, true
}

func (n *Normalizer) slotKeywords(a answer) (string, bool) {
	if a.slot == domain.SlotFlavors {
		return n.flavors(a)
	}
	if !userKeywordSlots[a.slot] {
		return "", false
	}
	return byPriority(a.tokens, slotKeywords[a.slot])
}

// flavors reads flavor names from the bot's question first and the user's
// reply second, keeping at most two.
func (n *Normalizer) flavors(a answer) (string, bool) {
	if containsAny(a.tokens, flavorSkipTokens) {
		return noFlavor, true
	}
	picked := pickFlavors(scanFlavors(a.botTokens, n.vocab), scanFlavors(a.tokens, n.vocab))
	if len(picked) == 0 {
		return "", false
	}
	return strings.Join(picked, ", "), true
}

// fromBotMessage resolves a non-committal answer from what the bot offered.
// Without bot context the original text passes through.
func (n *Normalizer) fromBotMessage(a answer) (string, bool) {
	if !a.forbidden || a.botText == "" {
		return "", false
	}

	switch a.slot {
	case domain.SlotFormulaName:
		return suggestedName(a.botText), true
	case domain.SlotFlavors:
		// The bot named no known flavor, or flavors() would have matched.
		return defaultFlavor, true
	}

	if botExtractionSlots[a.slot] {
		if v, ok := byPosition(a.botTokens, slotKeywords[a.slot]); ok {
			return v, true
		}
	}
	if a.slot == domain.SlotGoal {
		return goalCandidates[n.intn(len(goalCandidates))], true
	}
	if v, ok := slotDefaults[a.slot]; ok {
		return v, true
	}
	// A filler word inside a real answer keeps the answer.
	if !isNonCommittal(a.original) {
		return a.original, true
	}
	if containsAny(a.tokens, negativeTokens) {
		return noneValue, true
	}
	return noPreferenceValue, true
}
