package normalize

import "formula-agent/internal/domain"

// keywordSet maps a group of terms to one canonical value.
type keywordSet struct {
	value string
	terms []term
}

func set(value string, terms ...string) keywordSet {
	return keywordSet{value: value, terms: parseTerms(terms...)}
}

// slotKeywords lists, per slot, the canonical values in priority order.
var slotKeywords = map[domain.SlotKey][]keywordSet{
	domain.SlotGoal: {
		set("Energy", "energy", "energetic", "tired*", "coffee", "red bull", "exhausted"),
		set("Focus", "focus*", "concentrat*", "work"),
		set("Hydration", "hydrat*", "water", "thirsty"),
		set("Sleep", "sleep*", "rest", "bed", "bedtime"),
		set("Recovery", "recover*", "gym", "workout*", "sore"),
	},
	domain.SlotFormat: {
		set("Stick Pack", "powder*", "mix", "stick*", "packet*"),
		set("Capsule", "pill*", "capsule*", "tablet*"),
		set("Pod", "pod", "coffee maker"),
	},
	domain.SlotRoutine: {
		set("Morning", "morning*", "breakfast", "wake", "waking"),
		set("Afternoon", "afternoon*", "lunch", "midday"),
		set("Evening", "evening*", "night*", "dinner"),
		set("All day", "all day", "throughout", "all the time", "anytime"),
	},
	domain.SlotLifestyle: {
		set("Active", "active", "gym", "workout*", "work out", "athlete*", "exercis*"),
		set("Sedentary", "desk", "office", "sedentary", "sit", "sitting"),
		set("Moderate", "moderate*", "sometimes"),
	},
	domain.SlotSensitivities: {
		set("Caffeine sensitive", "caffeine", "jitter*", "coffee", "stimulant*"),
		set("No", "no", "none", "nope", "nothing"),
	},
	domain.SlotSweetener: {
		set("Stevia", "stevia"),
		set("Monk Fruit", "monk fruit", "monkfruit"),
		set("Allulose", "allulose"),
		set("Erythritol", "erythritol"),
	},
}

// userKeywordSlots are scanned on the user's own words.
var userKeywordSlots = map[domain.SlotKey]bool{
	domain.SlotGoal:          true,
	domain.SlotFormat:        true,
	domain.SlotRoutine:       true,
	domain.SlotLifestyle:     true,
	domain.SlotSensitivities: true,
}

// botExtractionSlots are slots whose question lists options the bot would
// pick from when the user defers. Sensitivities is excluded: the examples in
// that question are not recommendations.
var botExtractionSlots = map[domain.SlotKey]bool{
	domain.SlotGoal:      true,
	domain.SlotFormat:    true,
	domain.SlotRoutine:   true,
	domain.SlotLifestyle: true,
	domain.SlotSweetener: true,
}

// slotDefaults are used when the user defers and the bot named nothing.
var slotDefaults = map[domain.SlotKey]string{
	domain.SlotFormat:    domain.FormatStickPack,
	domain.SlotSweetener: "Stevia",
}

// goalCandidates is the curated pool for a random goal.
var goalCandidates = []string{"Energy", "Focus", "Hydration", "Sleep", "Recovery"}

// byPriority returns the value of the first set with any term in hay.
func byPriority(hay []string, sets []keywordSet) (string, bool) {
	for _, s := range sets {
		for _, t := range s.terms {
			if t.find(hay) >= 0 {
				return s.value, true
			}
		}
	}
	return "", false
}

// byPosition returns the value whose term occurs earliest in hay, which is
// the first option a question mentioned.
func byPosition(hay []string, sets []keywordSet) (string, bool) {
	best, value := -1, ""
	for _, s := range sets {
		for _, t := range s.terms {
			if i := t.find(hay); i >= 0 && (best < 0 || i < best) {
				best, value = i, s.value
			}
		}
	}
	return value, best >= 0
}
