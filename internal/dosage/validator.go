// Package dosage keeps per-ingredient dosages inside their declared ranges.
package dosage

import (
	"context"
	"log/slog"
	"math"

	"formula-agent/internal/domain"
)

// Adjustment records a value the validator had to change.
type Adjustment struct {
	Name     string
	Field    string
	Previous float64
	Value    float64
	Min      float64
	Max      float64
}

// Validator clamps dosages. Out-of-range input is corrected, never rejected,
// since it comes from an unreliable generator.
type Validator struct {
	log *slog.Logger
}

// NewValidator returns a Validator that reports adjustments to log.
// A nil logger falls back to slog.Default().
func NewValidator(log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{log: log}
}

// Validate returns a copy of ingredients with every suggested value inside
// [min, max] and the adjustments it made. Inverted bounds are swapped first.
func (v *Validator) Validate(ingredients []domain.Ingredient) ([]domain.Ingredient, []Adjustment) {
	if ingredients == nil {
		return nil, nil
	}
	out := make([]domain.Ingredient, len(ingredients))
	var adjustments []Adjustment
	for i, ing := range ingredients {
		if ing.Min > ing.Max {
			adjustments = append(adjustments, v.report(Adjustment{
				Name: ing.Name, Field: "bounds", Previous: ing.Min, Value: ing.Max, Min: ing.Max, Max: ing.Min,
			}))
			ing.Min, ing.Max = ing.Max, ing.Min
		}
		if clamped := Clamp(ing.Suggested, ing.Min, ing.Max); clamped != ing.Suggested {
			adjustments = append(adjustments, v.report(Adjustment{
				Name: ing.Name, Field: "suggested", Previous: ing.Suggested, Value: clamped, Min: ing.Min, Max: ing.Max,
			}))
			ing.Suggested = clamped
		}
		out[i] = ing
	}
	return out, adjustments
}

// ApplyDosageChoices sets each ingredient's suggested value to the user's chosen
// amount, keyed by ingredient name, and validates the result. Ingredients
// without a choice keep their suggestion.
func (v *Validator) ApplyDosageChoices(ingredients []domain.Ingredient, choices map[string]float64) ([]domain.Ingredient, []Adjustment) {
	chosen := make([]domain.Ingredient, len(ingredients))
	for i, ing := range ingredients {
		if amount, ok := choices[ing.Name]; ok {
			ing.Suggested = amount
		}
		chosen[i] = ing
	}
	return v.Validate(chosen)
}

func (v *Validator) report(a Adjustment) Adjustment {
	v.log.LogAttrs(context.Background(), slog.LevelWarn, "dosage clamped",
		slog.String("ingredient", a.Name),
		slog.String("field", a.Field),
		slog.Float64("from", a.Previous),
		slog.Float64("to", a.Value),
		slog.Float64("min", a.Min),
		slog.Float64("max", a.Max),
	)
	return a
}

// Clamp forces value into [lo, hi]. NaN becomes lo.
func Clamp(value, lo, hi float64) float64 {
	if math.IsNaN(value) {
		return lo
	}
	return max(lo, min(hi, value))
}
