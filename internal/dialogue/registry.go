// Package dialogue owns the fixed slot order of the formula form, the
// deterministic fallback questions, and the resume logic used after a
// tool-call detour.
package dialogue

import (
	"errors"
	"fmt"
	"strings"

	"formula-agent/internal/domain"
)

// Registry is the immutable, ordered slot set.
type Registry struct {
	slots []domain.Slot
	index map[domain.SlotKey]int
}

// DefaultSlots returns the canonical slot order with its fallback prompts.
func DefaultSlots() []domain.Slot {
	return []domain.Slot{
		{Key: domain.SlotGoal, InputType: domain.InputText, Prompt: "Hey! 👋 What are you looking for today? Energy, focus, hydration, or something else?"},
		{Key: domain.SlotFormat, InputType: domain.InputText, Prompt: "Nice! Do you want Stick Packs, Capsules, or Pods?"},
		{Key: domain.SlotRoutine, InputType: domain.InputText, Prompt: "Perfect! When do you usually need that boost - morning, afternoon, or evening?"},
		{Key: domain.SlotLifestyle, InputType: domain.InputText, Prompt: "Cool! Are you pretty active, or more of a desk job kind of person?"},
		{Key: domain.SlotSensitivities, InputType: domain.InputText, Prompt: "Got it! Any sensitivities I should know about? Caffeine, allergies, anything like that?"},
		{Key: domain.SlotCurrentSupplements, InputType: domain.InputText, Prompt: "Almost done! Taking any other supplements or meds?"},
		{Key: domain.SlotExperience, InputType: domain.InputText, Prompt: "Last thing - are you new to supplements or pretty experienced with them?"},
		{Key: domain.SlotDosage, InputType: domain.InputText, Prompt: "Ready to build your formula! Want it on the gentle side or the stronger side?"},
		{Key: domain.SlotSweetener, InputType: domain.InputText, Prompt: "Want a natural sweetener? Stevia, Monk Fruit, Allulose, or Erythritol?"},
		{Key: domain.SlotFlavors, InputType: domain.InputText, Prompt: "Pick up to 2 flavors! Mango, Sour Cherry, Watermelon, Green Apple... or skip it?"},
		{Key: domain.SlotFormulaName, InputType: domain.InputText, Prompt: "Love it! What do you want to call your formula?"},
	}
}

// DefaultRegistry builds a Registry from DefaultSlots.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultSlots())
	if err != nil {
		panic(err)
	}
	return r
}

// NewRegistry validates and freezes an ordered slot list.
func NewRegistry(slots []domain.Slot) (*Registry, error) {
	if len(slots) == 0 {
		return nil, errors.New("dialogue: slot list must not be empty")
	}
	r := &Registry{
		slots: make([]domain.Slot, 0, len(slots)),
		index: make(map[domain.SlotKey]int, len(slots)),
	}
	for _, s := range slots {
		if strings.TrimSpace(string(s.Key)) == "" {
			return nil, errors.New("dialogue: slot key must not be empty")
		}
		if _, dup := r.index[s.Key]; dup {
			return nil, fmt.Errorf("dialogue: duplicate slot %q", s.Key)
		}
		r.index[s.Key] = len(r.slots)
		r.slots = append(r.slots, s)
	}
	return r, nil
}

// Slots returns a copy of the ordered slot list.
func (r *Registry) Slots() []domain.Slot {
	out := make([]domain.Slot, len(r.slots))
	copy(out, r.slots)
	return out
}

// Lookup finds a slot by key.
func (r *Registry) Lookup(key domain.SlotKey) (domain.Slot, bool) {
	i, ok := r.index[key]
	if !ok {
		return domain.Slot{}, false
	}
	return r.slots[i], true
}

// NextUnfilled returns the first slot in canonical order that is absent from
// form. Keys unknown to the registry are ignored. It returns false once every
// slot is present.
func (r *Registry) NextUnfilled(form domain.FormState) (domain.Slot, bool) {
	for _, s := range r.slots {
		if !form.Has(s.Key) {
			return s, true
		}
	}
	return domain.Slot{}, false
}

// Applies reports whether slot is part of the flow for the current form.
// Sweetener and Flavors only apply to stick packs; an unanswered format
// keeps them in the flow.
func (r *Registry) Applies(slot domain.Slot, form domain.FormState) bool {
	switch slot.Key {
	case domain.SlotSweetener, domain.SlotFlavors:
		format, ok := form[domain.SlotFormat]
		return !ok || strings.EqualFold(strings.TrimSpace(format), domain.FormatStickPack)
	default:
		return true
	}
}
