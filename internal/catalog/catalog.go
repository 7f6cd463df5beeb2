// Package catalog holds the product inventory the conversation draws from:
// ingredient ranges, flavors, sweeteners and safety limits.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	StatusInStock    = "in_stock"
	StatusLowStock   = "low_stock"
	StatusOutOfStock = "out_of_stock"

	availableForStickPack = "stickPack"
	flavorSuffix          = " Flavor Powder"
	defaultMaxSelections  = 2
)

type Ingredient struct {
	Name      string  `json:"name"`
	Blend     string  `json:"blend"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Suggested float64 `json:"suggested,omitempty"`
	Unit      string  `json:"unit"`
	InStock   *bool   `json:"inStock,omitempty"`
}

func (i Ingredient) available() bool {
	return i.InStock == nil || *i.InStock
}

type Flavor struct {
	Name         string   `json:"name"`
	AvailableFor []string `json:"availableFor"`
	Status       string   `json:"status"`
	SortOrder    int      `json:"sortOrder"`
}

// DisplayName strips the inventory suffix, "Mango Flavor Powder" -> "Mango".
func (f Flavor) DisplayName() string {
	return strings.TrimSpace(strings.TrimSuffix(f.Name, flavorSuffix))
}

type SafetyLimit struct {
	Name    string  `json:"name"`
	Max     float64 `json:"max"`
	Unit    string  `json:"unit"`
	Warning string  `json:"warning"`
}

// Catalog is the decoded inventory document.
type Catalog struct {
	LastUpdated   time.Time     `json:"lastUpdated"`
	MaxSelections int           `json:"maxSelectionsPerFormula"`
	Ingredients   []Ingredient  `json:"ingredients"`
	Flavors       []Flavor      `json:"flavors"`
	Sweeteners    []string      `json:"sweeteners"`
	SafetyLimits  []SafetyLimit `json:"safetyLimits"`
}

// Validate rejects documents the conversation cannot work with.
func (c *Catalog) Validate() error {
	if c == nil {
		return errors.New("catalog: nil catalog")
	}
	if len(c.Ingredients) == 0 {
		return errors.New("catalog: no ingredients")
	}
	seen := make(map[string]bool, len(c.Ingredients))
	for _, ing := range c.Ingredients {
		key := strings.ToLower(strings.TrimSpace(ing.Name))
		if key == "" {
			return errors.New("catalog: ingredient with empty name")
		}
		if seen[key] {
			return fmt.Errorf("catalog: duplicate ingredient %q", ing.Name)
		}
		seen[key] = true
	}
	return nil
}

// MaxFlavors is the flavor selection cap, 2 unless the document says otherwise.
func (c *Catalog) MaxFlavors() int {
	if c.MaxSelections <= 0 {
		return defaultMaxSelections
	}
	return c.MaxSelections
}

// StickPackFlavors returns in-stock stick-pack flavors ordered by SortOrder.
func (c *Catalog) StickPackFlavors() []Flavor {
	var out []Flavor
	for _, f := range c.Flavors {
		if f.Status != StatusInStock {
			continue
		}
		for _, a := range f.AvailableFor {
			if a == availableForStickPack {
				out = append(out, f)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// FlavorNames lists the display names of StickPackFlavors.
func (c *Catalog) FlavorNames() []string {
	flavors := c.StickPackFlavors()
	out := make([]string, len(flavors))
	for i, f := range flavors {
		out[i] = f.DisplayName()
	}
	return out
}

// FlavorInStock reports whether name refers to an in-stock flavor. Partial
// names match ("cherry" matches "Sour Cherry Flavor Powder") and so do near
// misspellings of the display name.
func (c *Catalog) FlavorInStock(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	for _, f := range c.Flavors {
		if f.Status != StatusInStock {
			continue
		}
		if strings.Contains(strings.ToLower(f.Name), name) {
			return true
		}
		display := strings.ToLower(f.DisplayName())
		if len(name) >= 4 && fuzzy.LevenshteinDistance(name, display) <= 2 {
			return true
		}
	}
	return false
}

// Bounds finds the ingredient named name. Exact (case-insensitive) matches win;
// otherwise the closest fuzzy match is used so "l theanine" finds "L-Theanine".
func (c *Catalog) Bounds(name string) (Ingredient, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Ingredient{}, false
	}
	names := make([]string, 0, len(c.Ingredients))
	for _, ing := range c.Ingredients {
		if strings.EqualFold(ing.Name, name) {
			return ing, true
		}
		names = append(names, ing.Name)
	}

	ranks := fuzzy.RankFindNormalizedFold(squash(name), squashAll(names))
	if len(ranks) == 0 {
		return Ingredient{}, false
	}
	sort.Sort(ranks)
	best := ranks[0]
	// Queries shorter than half the name are too weak to trust.
	if 2*len(best.Source) < len(best.Target) {
		return Ingredient{}, false
	}
	return c.Ingredients[best.OriginalIndex], true
}

// squash drops separators so "L Theanine", "l-theanine" and "LTheanine" compare equal.
func squash(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '.':
			return -1
		}
		return r
	}, s)
}

func squashAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = squash(s)
	}
	return out
}

// SafetyLimit returns the ceiling configured for the named ingredient.
func (c *Catalog) SafetyLimit(name string) (SafetyLimit, bool) {
	for _, l := range c.SafetyLimits {
		if strings.EqualFold(l.Name, name) {
			return l, true
		}
	}
	return SafetyLimit{}, false
}

// Summary is a one-line stock overview for the prompt.
func (c *Catalog) Summary() string {
	powders := 0
	for _, ing := range c.Ingredients {
		if ing.available() {
			powders++
		}
	}
	updated := "unknown"
	if !c.LastUpdated.IsZero() {
		updated = c.LastUpdated.Format("1/2/2006")
	}
	return fmt.Sprintf("Inventory (Updated: %s): %d flavors, %d ingredient powders in stock.",
		updated, len(c.StickPackFlavors()), powders)
}

// IngredientsPrompt lists in-stock ingredients grouped by blend.
func (c *Catalog) IngredientsPrompt() string {
	var blends []string
	byBlend := make(map[string][]string)
	for _, ing := range c.Ingredients {
		if !ing.available() {
			continue
		}
		blend := ing.Blend
		if blend == "" {
			blend = "Other"
		}
		if _, ok := byBlend[blend]; !ok {
			blends = append(blends, blend)
		}
		byBlend[blend] = append(byBlend[blend], fmt.Sprintf("%s (%s-%s%s)",
			ing.Name, formatAmount(ing.Min), formatAmount(ing.Max), ing.Unit))
	}
	var b strings.Builder
	for _, blend := range blends {
		fmt.Fprintf(&b, "%s: %s\n", blend, strings.Join(byBlend[blend], ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAmount(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
