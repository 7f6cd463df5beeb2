package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"formula-agent/internal/domain"
)

func bot(text string) *domain.Turn {
	return &domain.Turn{Sender: domain.SenderBot, Text: text}
}

func fixedRandom(i int) Option {
	return WithRandom(func(int) int { return i })
}

func TestNormalize_Scenarios(t *testing.T) {
	n := New()

	require.Equal(t, "Stick Pack", n.Normalize("sure", domain.SlotFormat, bot("Do you want Stick Packs, Capsules, or Pods?")))
	require.Equal(t, "Energy", n.Normalize("I'm always tired", domain.SlotGoal, nil))
	require.Equal(t, "Mango, Watermelon", n.Normalize("mango and watermelon", domain.SlotFlavors, nil))
}

func TestNormalize_ConfirmationShortcut(t *testing.T) {
	n := New()
	prev := &domain.Turn{
		Sender: domain.SenderBot,
		Text:   "Got it! So you're pretty active - is that right?",
		Reply:  &domain.Reply{PendingConfirmation: true, ExtractedValue: "Active"},
	}

	for _, u := range []string{"yes", "Yes!", "yeah?", "sounds good", "  OK.  "} {
		require.Equal(t, "Active", n.Normalize(u, domain.SlotLifestyle, prev), "utterance %q", u)
	}

	// A longer reply is not a confirmation.
	require.Equal(t, "Sedentary", n.Normalize("no, I sit at a desk", domain.SlotLifestyle, prev))

	// Without a pending value the shortcut does not apply.
	prev.Reply.PendingConfirmation = false
	require.NotEqual(t, "Active", n.Normalize("yes", domain.SlotExperience, prev))
}

func TestNormalize_SlotKeywords(t *testing.T) {
	n := New()
	cases := []struct {
		slot domain.SlotKey
		in   string
		want string
	}{
		{domain.SlotGoal, "something similar to red bull", "Energy"},
		{domain.SlotGoal, "I can't concentrate", "Focus"},
		{domain.SlotGoal, "I never drink enough water", "Hydration"},
		{domain.SlotGoal, "help me sleep better", "Sleep"},
		{domain.SlotGoal, "help with recovery", "Recovery"},
		{domain.SlotFormat, "the powder ones", "Stick Pack"},
		{domain.SlotFormat, "capsules please", "Capsule"},
		{domain.SlotFormat, "stick-pack", "Stick Pack"},
		{domain.SlotFormat, "pods for my coffee maker", "Pod"},
		{domain.SlotRoutine, "in the morning", "Morning"},
		{domain.SlotRoutine, "after lunch", "Afternoon"},
		{domain.SlotRoutine, "I work nights", "Evening"},
		{domain.SlotRoutine, "all day long", "All day"},
		{domain.SlotLifestyle, "i am desk person", "Sedentary"},
		{domain.SlotLifestyle, "pretty active", "Active"},
		{domain.SlotLifestyle, "I exercise sometimes", "Active"},
		{domain.SlotSensitivities, "I'm sensitive to stimulants", "Caffeine sensitive"},
		{domain.SlotSensitivities, "nope", "No"},
		{domain.SlotSensitivities, "none at all", "No"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, n.Normalize(tc.in, tc.slot, nil), "%s: %q", tc.slot, tc.in)
	}
}

func TestNormalize_ShortKeywordsRespectWordBoundaries(t *testing.T) {
	n := New()
	// "no" must not match inside "know", and "pod" not inside "podcast".
	require.Equal(t, "peanuts, you know", n.Normalize("peanuts, you know", domain.SlotSensitivities, nil))
	require.Equal(t, "I listen to a podcast", n.Normalize("I listen to a podcast", domain.SlotFormat, nil))
	require.False(t, isForbidden("I know what I want"))
	require.False(t, isForbidden("Anything with ginger"))
}

func TestNormalize_ForbiddenNeverStoredRaw(t *testing.T) {
	n := New(fixedRandom(0))
	questions := map[domain.SlotKey]string{
		domain.SlotGoal:               "What are you looking for? Energy, focus, hydration, or something else?",
		domain.SlotFormat:             "Do you want Stick Packs, Capsules, or Pods?",
		domain.SlotRoutine:            "When do you usually need that boost - morning, afternoon, or evening?",
		domain.SlotLifestyle:          "Are you pretty active, or more of a desk job kind of person?",
		domain.SlotSensitivities:      "Any sensitivities I should know about?",
		domain.SlotCurrentSupplements: "Taking any other supplements or meds?",
		domain.SlotExperience:         "Are you new to supplements or pretty experienced with them?",
		domain.SlotSweetener:          "Want sweetener like Stevia, Monk Fruit, Allulose or Erythritol?",
		domain.SlotFlavors:            "Want flavors? We've got Mango, Sour Cherry, Watermelon...",
		domain.SlotFormulaName:        "How about 'Morning Energy Boost'?",
	}
	for slot, q := range questions {
		for _, phrase := range forbiddenPhrases {
			got := n.Normalize(phrase, slot, bot(q))
			require.NotEqual(t, phrase, got, "%s: %q", slot, phrase)
			require.NotEmpty(t, got)
		}
	}
}

func TestNormalize_ExtractsFirstOptionFromBot(t *testing.T) {
	n := New()
	require.Equal(t, "Capsule", n.Normalize("whatever you want", domain.SlotFormat, bot("Capsules or stick packs, or maybe pods?")))
	require.Equal(t, "Morning", n.Normalize("idk", domain.SlotRoutine, bot("When do you need it - morning, afternoon, or evening?")))
	require.Equal(t, "Monk Fruit", n.Normalize("any", domain.SlotSweetener, bot("I'd go with Monk Fruit, or Stevia if you prefer.")))
	require.Equal(t, "Focus", n.Normalize("what do you recommend", domain.SlotGoal, bot("I recommend Focus!")))
}

func TestNormalize_Defaults(t *testing.T) {
	n := New(fixedRandom(3))
	require.Equal(t, "Stick Pack", n.Normalize("up to you", domain.SlotFormat, bot("Which one works for you?")))
	require.Equal(t, "Stevia", n.Normalize("whatever", domain.SlotSweetener, bot("Want a sweetener?")))
	require.Equal(t, "Mango", n.Normalize("surprise me", domain.SlotFlavors, bot("Want to add flavors?")))
	require.Equal(t, "Sleep", n.Normalize("surprise me", domain.SlotGoal, bot("Tell me what you need!")))
	require.Equal(t, "None", n.Normalize("nope", domain.SlotCurrentSupplements, bot("Taking any other supplements?")))
	require.Equal(t, "No preference", n.Normalize("idk", domain.SlotExperience, bot("New to supplements?")))
}

func TestNormalize_EmptyBotContextPassesThrough(t *testing.T) {
	n := New()
	require.Equal(t, "sure", n.Normalize("sure", domain.SlotFormat, nil))
	require.Equal(t, "whatever", n.Normalize(" whatever ", domain.SlotGoal, bot("   ")))
}

func TestNormalize_PassThrough(t *testing.T) {
	n := New()
	require.Equal(t, "Morning Zen", n.Normalize("  Morning Zen ", domain.SlotFormulaName, bot("What should we call it?")))
	require.Equal(t, "fish oil and magnesium", n.Normalize("fish oil and magnesium", domain.SlotCurrentSupplements, nil))
}

func TestNormalize_Idempotent(t *testing.T) {
	n := New()
	canonical := map[domain.SlotKey][]string{
		domain.SlotGoal:          {"Energy", "Focus", "Hydration", "Sleep", "Recovery"},
		domain.SlotFormat:        {"Stick Pack", "Capsule", "Pod"},
		domain.SlotRoutine:       {"Morning", "Afternoon", "Evening", "All day"},
		domain.SlotLifestyle:     {"Active", "Sedentary", "Moderate"},
		domain.SlotSensitivities: {"Caffeine sensitive", "No"},
		domain.SlotFlavors:       {"Mango, Watermelon", "Sour Cherry", "None"},
		domain.SlotSweetener:     {"Stevia", "Monk Fruit"},
		domain.SlotFormulaName:   {"Power Up"},
	}
	for slot, values := range canonical {
		for _, v := range values {
			once := n.Normalize(v, slot, nil)
			require.Equal(t, v, once, "%s: %q", slot, v)
			require.Equal(t, once, n.Normalize(once, slot, nil))
		}
	}
}

func TestNormalize_Flavors(t *testing.T) {
	n := New()
	require.Equal(t, "Pink Lemonade", n.Normalize("pink lemonade", domain.SlotFlavors, nil))
	require.Equal(t, "Strawberry Banana, Lime", n.Normalize("strawberry banana with lime and coconut", domain.SlotFlavors, nil))
	require.Equal(t, "None", n.Normalize("no thanks", domain.SlotFlavors, bot("Want Mango or Sour Cherry?")))
	require.Equal(t, "Sour Cherry, Mango", n.Normalize("surprise me", domain.SlotFlavors, bot("We've got Sour Cherry, Mango and Watermelon!")))
	// Flavors named in the bot's question come before the user's own.
	require.Equal(t, "Root Beer, Lime", n.Normalize("lime", domain.SlotFlavors, bot("How about Root Beer?")))
}

func TestNormalize_WithFlavors(t *testing.T) {
	n := New(WithFlavors([]string{"yuzu", "dragon fruit"}))
	require.Equal(t, "Dragon Fruit, Yuzu", n.Normalize("dragon fruit + yuzu", domain.SlotFlavors, nil))
	require.Equal(t, "mango", n.Normalize("mango", domain.SlotFlavors, nil))
}

func TestNormalize_FormulaName(t *testing.T) {
	n := New()
	cases := []struct {
		bot  string
		want string
	}{
		{`How about "Morning Energy Boost"? 🚀`, "Morning Energy Boost"},
		{"How about 'Power Up'? You'll love it", "Power Up"},
		{"How about Focus Fuel?", "Focus Fuel"},
		{"Let's call it Zen Mode!", "Zen Mode"},
		{"I suggest Night Owl for your blend", "Night Owl"},
		{"What should we call it", defaultFormulaName},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, n.Normalize("love it, sounds good", domain.SlotFormulaName, bot(tc.bot)), "bot %q", tc.bot)
	}
}

func TestNormalize_FreeTextWithFillerWordsIsKept(t *testing.T) {
	n := New()
	cases := []struct {
		slot      domain.SlotKey
		utterance string
	}{
		{domain.SlotCurrentSupplements, "a good multivitamin and sertraline"},
		{domain.SlotCurrentSupplements, "I take fish oil daily and no prescription meds"},
		{domain.SlotExperience, "I've been taking creatine for years, I'm fine with most stuff"},
	}
	for _, tc := range cases {
		got := n.Normalize(tc.utterance, tc.slot, bot("Taking any other supplements or meds?"))
		require.Equal(t, tc.utterance, got, "%s", tc.slot)
	}
	require.Equal(t, "None", n.Normalize("No.", domain.SlotCurrentSupplements, bot("Taking any other supplements or meds?")))
	require.Equal(t, "No preference", n.Normalize("fine", domain.SlotExperience, bot("New to supplements?")))
}
