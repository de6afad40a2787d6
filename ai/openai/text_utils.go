package openai

import "strings"

// maxFieldRunes bounds each place field sent to the model.
const maxFieldRunes = 500

// sanitizeField collapses whitespace and truncates long text.
func sanitizeField(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxFieldRunes {
		s = string(r[:maxFieldRunes])
	}
	return s
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
