package domain

// Order is the completed formula handed to checkout.
type Order struct {
	SessionID   string       `json:"sessionId"`
	FormulaName string       `json:"formulaName"`
	Format      string       `json:"format"`
	Goal        string       `json:"goal,omitempty"`
	Sweetener   string       `json:"sweetener,omitempty"`
	Flavors     []string     `json:"flavors,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
}
