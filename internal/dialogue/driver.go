package dialogue

import "formula-agent/internal/domain"

const completedPrompt = "Your formula is ready! Here is a summary of everything we picked together."

// NextQuestion is the deterministic fallback used when generation fails. It
// asks the first unanswered slot that applies to the form, and completes the
// flow once none is left.
func (r *Registry) NextQuestion(form domain.FormState) domain.Reply {
	if s, ok := r.NextApplicable(form); ok {
		return Question(s)
	}
	return domain.Reply{Text: completedPrompt, IsComplete: true}
}

// NextApplicable returns the first unanswered slot that is part of the flow
// for form. It returns false when the form is finished.
func (r *Registry) NextApplicable(form domain.FormState) (domain.Slot, bool) {
	for _, s := range r.slots {
		if form.Has(s.Key) || !r.Applies(s, form) {
			continue
		}
		return s, true
	}
	return domain.Slot{}, false
}

// Question renders the default prompt of a slot as a bot reply.
func Question(s domain.Slot) domain.Reply {
	inputType := s.InputType
	if inputType == "" {
		inputType = domain.InputText
	}
	return domain.Reply{
		Text:      s.Prompt,
		InputType: inputType,
		Component: s.Key,
	}
}
