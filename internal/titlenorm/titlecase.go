package titlenorm

import "strings"

// fixedForms are reproduced verbatim regardless of word-casing rules.
var fixedForms = map[string]string{
	"jay-z":        "JAY-Z",
	"the weeknd":   "The Weeknd",
	"j. cole":      "J. Cole",
	"j cole":       "J. Cole",
	"a$ap":         "A$AP",
	"t-pain":       "T-Pain",
	"6lack":        "6LACK",
	"xxxtentacion": "XXXTentacion",
}

// allCapsTokens are preserved as-is when they appear as a standalone word.
var allCapsTokens = map[string]bool{
	"dj": true,
	"mc": true,
}

// lowercaseConnectors stay lowercase unless they are the first word.
var lowercaseConnectors = map[string]bool{
	"the": true, "a": true, "feat.": true, "ft.": true, "x": true,
	"vs.": true, "and": true, "or": true, "of": true,
}

// titleCaseArtist applies the artist title-casing rules from §4.4 step 4:
// fixed forms win outright, then all-caps tokens are preserved, then
// connectors are lowercased unless leading, otherwise each word is
// capitalized while preserving internal mixed case (e.g. "McCartney").
func titleCaseArtist(artist string) string {
	if fixed, ok := fixedForms[strings.ToLower(artist)]; ok {
		return fixed
	}

	words := strings.Fields(artist)
	for i, w := range words {
		lower := strings.ToLower(w)
		switch {
		case allCapsTokens[lower]:
			words[i] = strings.ToUpper(w)
		case i > 0 && lowercaseConnectors[lower]:
			words[i] = lower
		default:
			words[i] = capitalizeWord(w)
		}
	}
	return strings.Join(words, " ")
}

// capitalizeWord capitalizes the first letter of w and lowercases the rest
// unless w is mixed case with internal uppercase (assumed intentional, e.g.
// "McCartney"). All-caps words such as "FISHER" are recased.
func capitalizeWord(w string) string {
	if w == "" {
		return w
	}
	if hasInternalUpper(w) && w != strings.ToUpper(w) {
		return w
	}
	runes := []rune(strings.ToLower(w))
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}

func hasInternalUpper(w string) bool {
	runes := []rune(w)
	for i := 1; i < len(runes); i++ {
		if runes[i] >= 'A' && runes[i] <= 'Z' {
			return true
		}
	}
	return false
}

// SanitizeFilename replaces characters that are unsafe in filenames across
// platforms with a space, collapses whitespace, and strips trailing dots
// and spaces, matching the exact rule in §4.8.
func SanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"\\", " ", "/", " ", ":", " ", "*", " ", "?", " ", "\"", " ", "<", " ", ">", " ", "|", " ",
	)
	s = replacer.Replace(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ". ")
	return s
}
