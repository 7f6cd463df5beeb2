package normalize

import (
	"regexp"
	"strings"
)

const defaultFormulaName = "Custom Formula"

// minNameLen rejects fragments too short to be a suggested name.
const minNameLen = 4

var (
	doubleQuoted = regexp.MustCompile(`["“]([^"”]+)["”]`)
	singleQuoted = regexp.MustCompile(`(?:^|[\s(:])['‘]([^'’]+)['’]`)
	howAbout     = regexp.MustCompile(`(?i)how about\s+["'“‘]?([^?!.'"“”‘’]+)["'”’]?[?!.]`)
	callIt       = regexp.MustCompile(`(?i)call it\s+["'“‘]?([^?!.'"“”‘’]+)["'”’]?[?!.]`)
	suggestedAs  = regexp.MustCompile(`\b(?:like|for|as|called|named|name|suggest|how about)\s+(?:a\s+|an\s+)?["'“‘]?([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)
)

// nameMatcher extracts a formula name suggestion from bot text.
type nameMatcher func(text string) (string, bool)

// nameMatchers run in precedence order: quoted text, "how about ...?",
// "call it ...", then a capitalized name after a suggesting word.
var nameMatchers = []nameMatcher{
	submatch(doubleQuoted, 1),
	submatch(singleQuoted, 1),
	submatch(howAbout, minNameLen),
	submatch(callIt, minNameLen),
	submatch(suggestedAs, minNameLen),
}

func submatch(re *regexp.Regexp, minLen int) nameMatcher {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		name := strings.TrimSpace(strings.Trim(strings.TrimSpace(m[1]), `"'“”‘’`))
		if len([]rune(name)) < minLen {
			return "", false
		}
		return name, true
	}
}

// suggestedName pulls the name the bot proposed out of its message.
func suggestedName(botText string) string {
	for _, m := range nameMatchers {
		if name, ok := m(botText); ok {
			return name
		}
	}
	return defaultFormulaName
}
