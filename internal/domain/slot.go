package domain

// SlotKey names a field of the guided formula form.
type SlotKey string

const (
	SlotGoal               SlotKey = "Goal"
	SlotFormat             SlotKey = "Format"
	SlotRoutine            SlotKey = "Routine"
	SlotLifestyle          SlotKey = "Lifestyle"
	SlotSensitivities      SlotKey = "Sensitivities"
	SlotCurrentSupplements SlotKey = "CurrentSupplements"
	SlotExperience         SlotKey = "Experience"
	SlotDosage             SlotKey = "Dosage"
	SlotSweetener          SlotKey = "Sweetener"
	SlotFlavors            SlotKey = "Flavors"
	SlotFormulaName        SlotKey = "FormulaName"
)

// InputType hints the client which widget renders a question.
type InputType string

const (
	InputText              InputType = "text"
	InputOptions           InputType = "options"
	InputMultiSelect       InputType = "multiselect"
	InputSlider            InputType = "slider"
	InputIngredientSliders InputType = "ingredient_sliders"
)

// Slot is one named question of the form. Identity is Key.
type Slot struct {
	Key       SlotKey
	Prompt    string
	InputType InputType
}

// FormatStickPack is the only delivery format that takes sweetener and flavors.
const FormatStickPack = "Stick Pack"
