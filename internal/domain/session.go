package domain

import "time"

// Session is the persisted per-conversation state. It is owned by a single
// conversation and never shared.
type Session struct {
	ID            string
	Form          FormState
	LastAsked     SlotKey
	Ingredients   []Ingredient
	LastRequestAt time.Time
	Turns         int
	CheckoutURL   string
	Complete      bool
}
