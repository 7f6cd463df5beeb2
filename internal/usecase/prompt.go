package usecase

import (
	"fmt"
	"strings"

	"formula-agent/internal/catalog"
	"formula-agent/internal/dialogue"
	"formula-agent/internal/domain"
)

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
	roleTool      = "tool"
)

type promptContext struct {
	registry *dialogue.Registry
	catalog  *catalog.Catalog
	form     domain.FormState
	history  []domain.Turn
}

// buildPromptMessages lays out the system instruction, inventory, collected
// answers and the conversation so far. Extra system messages go after the
// history and the user message, when set, comes last.
func buildPromptMessages(ctx promptContext, userMessage string, extra ...string) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: roleSystem, Content: buildSystemInstruction(ctx.registry, ctx.catalog)},
		{Role: roleSystem, Content: buildInventoryContext(ctx.catalog)},
	}
	if collected := buildCollectedContext(ctx.form); collected != "" {
		messages = append(messages, domain.ChatMessage{Role: roleSystem, Content: collected})
	}
	for _, t := range ctx.history {
		if m, ok := historyToPromptMessage(t); ok {
			messages = append(messages, m)
		}
	}
	for _, e := range extra {
		if e = strings.TrimSpace(e); e != "" {
			messages = append(messages, domain.ChatMessage{Role: roleSystem, Content: e})
		}
	}
	if userMessage = strings.TrimSpace(userMessage); userMessage != "" {
		messages = append(messages, domain.ChatMessage{Role: roleUser, Content: userMessage})
	}
	return messages
}

func historyToPromptMessage(t domain.Turn) (domain.ChatMessage, bool) {
	text := strings.TrimSpace(t.Text)
	if text == "" {
		return domain.ChatMessage{}, false
	}
	if t.Sender == domain.SenderUser {
		return domain.ChatMessage{Role: roleUser, Content: text}, true
	}
	if t.Component != "" {
		text = fmt.Sprintf("[Asked about: %s] %s", t.Component, text)
	}
	return domain.ChatMessage{Role: roleAssistant, Content: text}, true
}

func buildSystemInstruction(reg *dialogue.Registry, cat *catalog.Catalog) string {
	return strings.Join([]string{
		"Formula Assistant - AI-powered supplement consultant. Mission: build personalized formulas through friendly conversation.",
		"",
		"**FLOW:** " + flowLine(reg),
		"",
		functionCallingRules(),
		"",
		"**TONE:** Bold, friendly, playful (1-2 emojis/msg, NO lists, conversational). Keep it to 1-2 sentences.",
		"",
		"**INGREDIENTS:**",
		cat.IngredientsPrompt(),
		"",
		"**DOSAGE:** Personalize \"suggested\" value:",
		"Beginner/Sedentary 40-60% | Moderate/Active 60-80% | Experienced/Athlete 80-100% | Caffeine-sensitive 30-50%",
		"",
		safetyLine(cat),
		"",
		"**RULES:** Only listed ingredients | Stick Pack max " + fmt.Sprint(cat.MaxFlavors()) + " flavors | Pods NO flavors | Natural sweeteners only",
		"Never recommend ingredient doses outside the listed ranges. Never give prescriptive medical advice.",
		"After Experience, present 3-6 ingredients with inputType \"ingredient_sliders\" and component \"Dosage\".",
		"Sweetener options: " + strings.Join(cat.Sweeteners, ", ") + ".",
		"",
		"**RESPONSE FORMAT:**",
		outputContract(),
	}, "\n")
}

func flowLine(reg *dialogue.Registry) string {
	var core, stickPack []string
	for _, s := range reg.Slots() {
		if s.Key == domain.SlotSweetener || s.Key == domain.SlotFlavors {
			stickPack = append(stickPack, string(s.Key))
			continue
		}
		if len(stickPack) > 0 {
			core = append(core, "[Stick Pack only: "+strings.Join(stickPack, " → ")+"]")
			stickPack = nil
		}
		core = append(core, string(s.Key))
	}
	return strings.Join(append(core, "Complete"), " → ")
}

func functionCallingRules() string {
	return strings.Join([]string{
		"**FUNCTION CALLING - OFF-TOPIC QUESTIONS:**",
		"When the user asks something off-topic (weather, news, time, math), call the matching function,",
		"answer in one sentence (for searchWeb include the full results), then return to the SAME component. Never advance.",
		"**GREETINGS:** \"hi\"/\"hello\" = acknowledge briefly and re-ask the SAME question. Do not call functions for greetings.",
	}, "\n")
}

func safetyLine(cat *catalog.Catalog) string {
	if len(cat.SafetyLimits) == 0 {
		return "**SAFETY:** Add a short safety note for stimulants and recommend consulting a health professional."
	}
	parts := make([]string, len(cat.SafetyLimits))
	for i, l := range cat.SafetyLimits {
		parts[i] = fmt.Sprintf("%s>%g%s", l.Name, l.Max, l.Unit)
	}
	return "**SAFETY:** Warn " + strings.Join(parts, ", ")
}

func outputContract() string {
	return "You MUST respond with a single valid JSON object and no text outside it, with keys: " +
		"text (string), inputType (\"text\"|\"options\"|\"multiselect\"|\"slider\"|\"ingredient_sliders\"), " +
		"component (the component you are asking about), options (array or null), " +
		"sliderConfig ({min,max,step,defaultValue,unit} or null), " +
		"ingredients ([{name,min,max,suggested,unit,rationale}] or null), isComplete (boolean), " +
		"formulaSummary ({ingredients,formulaName,deliveryFormat,safetyNote} or null). " +
		"When you suggest a value and ask the user to confirm it, also set pendingConfirmation=true and extractedValue to the suggested value."
}

func buildInventoryContext(cat *catalog.Catalog) string {
	return fmt.Sprintf("**CURRENT INVENTORY STATUS:**\n%s\n\n**AVAILABLE FLAVORS (Stick Packs only, max %d):**\n%s\n\n"+
		"Only suggest flavors from this list. If the user asks for a flavor not on this list, apologize and suggest in-stock alternatives.",
		cat.Summary(), cat.MaxFlavors(), strings.Join(cat.FlavorNames(), ", "))
}

func buildCollectedContext(form domain.FormState) string {
	if len(form) == 0 {
		return ""
	}
	keys := form.Keys()
	pairs := make([]string, len(keys))
	names := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s: %s", k, form[k])
		names[i] = string(k)
	}
	return fmt.Sprintf("Information already collected:\n%s\n\nComponents already asked about: %s\n\n"+
		"DO NOT ask about these components again. Move to the next step in the conversation flow.\n\n%s",
		strings.Join(pairs, ", "), strings.Join(names, ", "), buildPersonaSummary(form))
}

// answerInstruction tells the generator which component the latest user
// message answers and how it was read.
func answerInstruction(slot domain.SlotKey, utterance, value string) string {
	if value == utterance {
		return fmt.Sprintf("The user's latest message answers %q. If it is a valid answer, acknowledge it and ask the next component; "+
			"if it is off-topic use a function, otherwise re-ask %q.", slot, slot)
	}
	return fmt.Sprintf("The user's latest message answers %q and was understood as %q. Save that value and ask the next component.",
		slot, value)
}

// outOfStockInstruction keeps the generator on Flavors when the user asked
// for flavors the catalog cannot fill.
func outOfStockInstruction(missing, available []string) string {
	return fmt.Sprintf("The user asked for flavors that are not in stock: %s. Do not save them. Apologize briefly, "+
		"offer the in-stock flavors (%s) and re-ask %q.",
		strings.Join(missing, ", "), strings.Join(available, ", "), domain.SlotFlavors)
}

func reformatInstruction() string {
	return "Please reformat your last response as a valid JSON object with these exact fields: text (string), inputType (string), " +
		"component (string), options (array or null), sliderConfig (object or null), ingredients (array or null), " +
		"isComplete (boolean), formulaSummary (object or null). Keep the same meaning and content, just change the format to JSON."
}

func resumeReminder(d dialogue.Directive, form domain.FormState) string {
	return "You must respond in valid JSON format with these fields: text (string), inputType (string), component (string), " +
		"options (array or null), sliderConfig (object or null), ingredients (array or null), isComplete (boolean), formulaSummary (object or null).\n\n" +
		d.Instruction(form) + "\n\n" +
		"IMPORTANT: If you used searchWeb, include the FULL search results in your response so the user sees actual information. " +
		"For other functions (time, weather, math), answer briefly (1 sentence). Then immediately continue with the component specified above."
}

func openingInstruction() string {
	return "Start the conversation: greet the user warmly in one sentence and ask what they are looking for (component \"Goal\")."
}
