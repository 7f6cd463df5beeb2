package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"formula-agent/internal/catalog"
	"formula-agent/internal/dialogue"
	"formula-agent/internal/domain"
)

var errEmptyReply = errors.New("usecase: empty reply")

func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseReply decodes a generator answer. A reply must carry text and either
// name a known component or be complete.
func parseReply(raw string, reg *dialogue.Registry) (domain.Reply, error) {
	body := stripCodeFences(raw)
	if body == "" {
		return domain.Reply{}, errEmptyReply
	}

	var reply domain.Reply
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&reply); err != nil {
		return domain.Reply{}, fmt.Errorf("usecase: decode reply: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.Reply{}, errors.New("usecase: decode reply: trailing data after JSON object")
	}

	reply.Text = strings.TrimSpace(reply.Text)
	if reply.Text == "" {
		return domain.Reply{}, errEmptyReply
	}
	if reply.IsComplete {
		return reply, nil
	}
	if _, ok := reg.Lookup(reply.Component); !ok {
		return domain.Reply{}, fmt.Errorf("usecase: reply names unknown component %q", reply.Component)
	}
	if reply.InputType == "" {
		reply.InputType = domain.InputText
	}
	return reply, nil
}

// boundIngredients replaces each ingredient's range with the catalog range
// when the catalog knows it.
func boundIngredients(cat *catalog.Catalog, in []domain.Ingredient) []domain.Ingredient {
	out := make([]domain.Ingredient, len(in))
	for i, ing := range in {
		if b, ok := cat.Bounds(ing.Name); ok {
			ing.Min, ing.Max = b.Min, b.Max
			if ing.Unit == "" {
				ing.Unit = b.Unit
			}
		}
		out[i] = ing
	}
	return out
}

// fillOptions supplies selectable values the generator left out.
func fillOptions(reply domain.Reply, cat *catalog.Catalog) domain.Reply {
	if len(reply.Options) > 0 {
		return reply
	}
	switch reply.Component {
	case domain.SlotFlavors:
		reply.Options = cat.FlavorNames()
		reply.InputType = domain.InputMultiSelect
	case domain.SlotSweetener:
		if len(cat.Sweeteners) > 0 {
			reply.Options = append([]string(nil), cat.Sweeteners...)
			reply.InputType = domain.InputOptions
		}
	}
	return reply
}

func lastBotTurn(history []domain.Turn) *domain.Turn {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Sender == domain.SenderBot {
			t := history[i]
			return &t
		}
	}
	return nil
}

func splitFlavors(v string) []string {
	var out []string
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		if f == "" || strings.EqualFold(f, "none") {
			continue
		}
		out = append(out, f)
	}
	return out
}
