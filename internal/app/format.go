package app

import (
	"regexp"
	"strings"
)

var (
	leadingRoleMarker = regexp.MustCompile(`(?im)^[ \t]*(ASSISTANT:|AI:|Human:)[ \t]*`)
	turnMarker        = regexp.MustCompile(`[ \t]*<\|user\|>[ \t]*`)
	productName       = regexp.MustCompile(`(\*\*)?(Flagstone \w+(?:\s+\w+)*)(\*\*)?`)
)

// Normalize strips role markers the model may echo and trims the result.
func Normalize(text string) string {
	text = leadingRoleMarker.ReplaceAllString(text, "")
	text = turnMarker.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Format renders a numbered answer as markdown sections. Text with fewer than
// two numbered sections is returned unchanged.
func Format(text string) string {
	sections := splitSections(text)
	if len(sections) < 2 {
		return text
	}
	for i, section := range sections {
		section = boldProductNames(section)
		sections[i] = bulletize(section)
	}
	return strings.Join(sections, "\n\n")
}

// splitSections cuts text before every numbered marker ("1.", "12.") that
// starts the text or follows whitespace.
func splitSections(text string) []string {
	var (
		sections []string
		start    int
	)
	for i := 1; i < len(text); i++ {
		if isSectionStart(text, i) {
			sections = appendSection(sections, text[start:i])
			start = i
		}
	}
	return appendSection(sections, text[start:])
}

func appendSection(sections []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		sections = append(sections, s)
	}
	return sections
}

func isSectionStart(text string, i int) bool {
	if !isDigit(text[i]) || !isSpace(text[i-1]) {
		return false
	}
	j := i
	for j < len(text) && isDigit(text[j]) {
		j++
	}
	if j >= len(text) || text[j] != '.' {
		return false
	}
	// "3.5" is a number, not a marker
	return j+1 == len(text) || !isDigit(text[j+1])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func boldProductNames(section string) string {
	return productName.ReplaceAllStringFunc(section, func(match string) string {
		if strings.HasPrefix(match, "**") && strings.HasSuffix(match, "**") && len(match) > 4 {
			return match
		}
		return "**" + strings.Trim(match, "*") + "**"
	})
}

// bulletize turns " - item" into a markdown list item unless the hyphen opens
// the section.
func bulletize(section string) string {
	var b strings.Builder
	b.Grow(len(section) + 8)
	for i := 0; i < len(section); i++ {
		if i > 0 && i+1 < len(section) && section[i] == '-' &&
			isSpace(section[i-1]) && isSpace(section[i+1]) {
			b.WriteString("\n* ")
			i++
			continue
		}
		b.WriteByte(section[i])
	}
	return b.String()
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
