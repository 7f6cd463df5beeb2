package normalize

// confirmationPhrases accept a value the bot asked the user to confirm.
var confirmationPhrases = []string{
	"yes", "yeah", "sure", "sounds good", "correct", "right",
	"ok", "okay", "yep", "yup", "perfect", "great",
}

// forbiddenPhrases are non-committal answers that must never be stored.
var forbiddenPhrases = []string{
	"sure", "yeah", "great", "ok", "yes", "okay",
	"any", "sounds good", "perfect", "awesome",
	"what do you recommend", "what do you suggest", "what do you think",
	"whatever you want", "whatever you like", "whatever", "up to you", "you choose", "you decide",
	"i don't know", "idk", "not sure", "dunno",
	"surprise me", "dealer's choice", "your choice",
	"done", "finished", "good", "fine", "nice", "cool", "yep", "yup", "no", "nope",
}

// negativePhrases mark a forbidden answer as a refusal rather than a shrug.
var negativePhrases = []string{"no", "nope"}

// flavorSkipPhrases opt out of flavoring.
var flavorSkipPhrases = []string{"skip", "none", "no flavors", "no flavor", "no thanks", "plain", "unflavored"}

var (
	forbiddenTokens  = tokenizeAll(forbiddenPhrases)
	negativeTokens   = tokenizeAll(negativePhrases)
	flavorSkipTokens = tokenizeAll(flavorSkipPhrases)
)

func tokenizeAll(phrases []string) [][]string {
	out := make([][]string, len(phrases))
	for i, p := range phrases {
		out[i] = tokenize(p)
	}
	return out
}

func containsAny(hay []string, phrases [][]string) bool {
	for _, p := range phrases {
		if containsPhrase(hay, p) {
			return true
		}
	}
	return false
}

// isForbidden reports whether utterance contains a non-committal phrase as a
// whole-word sequence.
func isForbidden(utterance string) bool {
	return containsAny(tokenize(utterance), forbiddenTokens)
}

// isNonCommittal reports whether the whole utterance is a non-committal
// phrase, so "fine" matches but "I'm fine with most stuff" does not.
func isNonCommittal(utterance string) bool {
	return matchesWhole(utterance, forbiddenPhrases)
}

// AcceptsSuggestion reports whether the whole utterance accepts whatever the
// bot proposed: a confirmation or a non-committal phrase that is not a refusal.
func AcceptsSuggestion(utterance string) bool {
	if IsConfirmation(utterance) {
		return true
	}
	return isNonCommittal(utterance) && !matchesWhole(utterance, negativePhrases)
}

func matchesWhole(utterance string, phrases []string) bool {
	bare := bareReply(utterance)
	for _, p := range phrases {
		if bare == p {
			return true
		}
	}
	return false
}

// IsConfirmation reports whether the whole utterance is a short acceptance
// such as "yes" or "sounds good".
func IsConfirmation(utterance string) bool {
	return matchesWhole(utterance, confirmationPhrases)
}
