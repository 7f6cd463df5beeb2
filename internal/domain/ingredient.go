package domain

// Ingredient is a per-ingredient dosage proposal. After validation
// Min <= Suggested <= Max holds.
type Ingredient struct {
	Name      string  `json:"name"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Suggested float64 `json:"suggested"`
	Unit      string  `json:"unit"`
	Rationale string  `json:"rationale"`
}
