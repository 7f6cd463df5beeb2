package usecase

import (
	"strings"

	"formula-agent/internal/domain"
)

func containsAnyOf(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// meaningful reports whether a free-text answer says more than "no".
func meaningful(v string) bool {
	return v != "none" && v != "no" && len(v) > 3
}

// buildPersonaSummary turns the collected answers into dosage guidance.
func buildPersonaSummary(form domain.FormState) string {
	if len(form) == 0 {
		return ""
	}
	lines := []string{"**USER PERSONA SUMMARY FOR DOSAGE CALCULATION:**"}

	if exp, ok := form[domain.SlotExperience]; ok {
		exp = strings.ToLower(exp)
		switch {
		case containsAnyOf(exp, "beginner", "new", "never"):
			lines = append(lines, "- Experience: BEGINNER → Use 40-60% of dosage range")
		case containsAnyOf(exp, "experienced", "advanced", "years"):
			lines = append(lines, "- Experience: ADVANCED → Use 80-100% of dosage range")
		default:
			lines = append(lines, "- Experience: MODERATE → Use 60-80% of dosage range")
		}
	} else {
		lines = append(lines, "- Experience: UNKNOWN (assume moderate) → Use 60-70% of dosage range")
	}

	if form.Has(domain.SlotLifestyle) || form.Has(domain.SlotRoutine) {
		activity := strings.ToLower(form[domain.SlotLifestyle] + " " + form[domain.SlotRoutine])
		switch {
		case containsAnyOf(activity, "athlete", "gym", "workout", "active", "exercise"):
			lines = append(lines, "- Activity: HIGH → Increase dosages within experience range")
		case containsAnyOf(activity, "sedentary", "desk", "office"):
			lines = append(lines, "- Activity: LOW → Decrease dosages within experience range")
		default:
			lines = append(lines, "- Activity: MODERATE → Standard dosages within experience range")
		}
	}

	if sens, ok := form[domain.SlotSensitivities]; ok {
		sens = strings.ToLower(sens)
		if containsAnyOf(sens, "caffeine", "stimulant") {
			lines = append(lines, "- ALERT: Caffeine/stimulant sensitivity → Reduce stimulants to 30-50% of range")
		}
		if containsAnyOf(sens, "anxiety", "sleep", "jitter") {
			lines = append(lines, "- ALERT: Anxiety/sleep concerns → Significantly reduce stimulants")
		}
		if meaningful(sens) {
			lines = append(lines, "- Sensitivities present → Use conservative dosages (40-60% of range)")
		}
	}

	if curr, ok := form[domain.SlotCurrentSupplements]; ok {
		curr = strings.ToLower(curr)
		if containsAnyOf(curr, "medication", "prescription") || meaningful(curr) {
			lines = append(lines, "- Taking other supplements/meds → Be conservative with dosages")
		}
	}

	if goal, ok := form[domain.SlotGoal]; ok {
		goal = strings.ToLower(goal)
		switch {
		case containsAnyOf(goal, "energy", "focus", "performance"):
			lines = append(lines, "- Goal needs strong support → Use higher end within safety limits")
		case containsAnyOf(goal, "relax", "sleep", "calm"):
			lines = append(lines, "- Goal is relaxation → Use moderate dosages")
		}
	}

	lines = append(lines, "", `**YOU MUST use this persona summary to calculate personalized "suggested" dosages for each ingredient.**`)
	return strings.Join(lines, "\n")
}
