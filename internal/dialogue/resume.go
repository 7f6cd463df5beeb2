package dialogue

import (
	"fmt"
	"strings"

	"formula-agent/internal/domain"
)

// Directive names the slot the next question must target.
type Directive struct {
	Slot domain.Slot
	// Forced is set when the slot was pending before a detour.
	Forced bool
	// Done is set when no slot is left to ask.
	Done bool
}

// Resume decides which slot follows a detour turn. A slot that was pending
// before the detour always wins; otherwise the first unfilled slot is used.
func (r *Registry) Resume(form domain.FormState, lastAsked *domain.Slot) Directive {
	if lastAsked != nil {
		return Directive{Slot: *lastAsked, Forced: true}
	}
	s, ok := r.NextUnfilled(form)
	if !ok {
		return Directive{Done: true}
	}
	return Directive{Slot: s}
}

// Instruction renders the directive as a system message for the generator.
func (d Directive) Instruction(form domain.FormState) string {
	switch {
	case d.Done:
		return "All components are collected. Wrap up the formula and return isComplete=true."
	case d.Forced:
		return fmt.Sprintf(
			"CRITICAL: The user just asked an off-topic question which you answered. Before they interrupted, you were asking about component %q. "+
				"You MUST continue asking about %q - do NOT advance to the next component. Return component: %q in your JSON response.",
			d.Slot.Key, d.Slot.Key, d.Slot.Key,
		)
	case len(form) == 0:
		return fmt.Sprintf("No components collected yet. Ask about %q to find out what they want.", d.Slot.Key)
	default:
		keys := form.Keys()
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = string(k)
		}
		return fmt.Sprintf("Components collected: %s. Ask about %q next.", strings.Join(names, ", "), d.Slot.Key)
	}
}
