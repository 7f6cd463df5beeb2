package domain

import "time"

// Sender identifies who produced a turn.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Turn is a single entry of the append-only conversation history.
type Turn struct {
	Sender    Sender
	Text      string
	Component SlotKey
	Reply     *Reply
	CreatedAt time.Time
}

// PendingValue returns the value a bot turn asked the user to confirm, if any.
func (t *Turn) PendingValue() (string, bool) {
	if t == nil || t.Reply == nil || !t.Reply.PendingConfirmation || t.Reply.ExtractedValue == "" {
		return "", false
	}
	return t.Reply.ExtractedValue, true
}

// SliderConfig configures a single numeric slider question.
type SliderConfig struct {
	Min              float64  `json:"min"`
	Max              float64  `json:"max"`
	Step             float64  `json:"step"`
	DefaultValue     float64  `json:"defaultValue"`
	Unit             string   `json:"unit"`
	RecommendedValue *float64 `json:"recommendedValue,omitempty"`
}

// FormulaSummary is the completed formula shown before checkout.
type FormulaSummary struct {
	Ingredients    []Ingredient `json:"ingredients"`
	DeliveryFormat string       `json:"deliveryFormat,omitempty"`
	FormulaName    string       `json:"formulaName,omitempty"`
	SafetyNote     string       `json:"safetyNote,omitempty"`
	RedirectURL    string       `json:"redirectUrl,omitempty"`
}

// Reply is the structured bot message produced by the generator.
type Reply struct {
	Text                string          `json:"text"`
	InputType           InputType       `json:"inputType,omitempty"`
	Component           SlotKey         `json:"component,omitempty"`
	Options             []string        `json:"options,omitempty"`
	SliderConfig        *SliderConfig   `json:"sliderConfig,omitempty"`
	Ingredients         []Ingredient    `json:"ingredients,omitempty"`
	IsComplete          bool            `json:"isComplete"`
	FormulaSummary      *FormulaSummary `json:"formulaSummary,omitempty"`
	PendingConfirmation bool            `json:"pendingConfirmation,omitempty"`
	ExtractedValue      string          `json:"extractedValue,omitempty"`
}
