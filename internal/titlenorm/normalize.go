// Package titlenorm turns a raw extractor title and uploader into
// normalized {artist, title, version} metadata. It is a pure function
// package: no I/O, no shared state, safe to call concurrently.
//
// The approach (strip junk tokens, split on a separator, detect a version
// parenthetical, title-case with a connector/exception table) is adapted
// from the filename- and artist-normalization helpers this lineage already
// uses for its own metadata cleanup, generalized to the source-title shape
// produced by a URL extractor rather than a local filename.
package titlenorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Result is the Title Normalizer's output for one source item.
type Result struct {
	Artist  string
	Title   string
	Version string // "" when no version was detected
}

var junkTokens = []string{
	"official video", "official audio", "lyric video", "lyrics video", "lyric",
	"lyrics", "visualiser", "visualizer", "hd", "4k", "8k", "full album",
}

var bracketRe = regexp.MustCompile(`\[[^\]]*\]`)
var emptyParensRe = regexp.MustCompile(`\(\s*\)`)
var whitespaceRe = regexp.MustCompile(`\s+`)

var separators = []string{" - ", " – ", " — ", " | "}

var versionKeywords = []string{
	"original mix", "extended mix", "radio edit", "club mix", "dub", "edit",
	"remix", "rework", "bootleg", "vip mix", "vip", "mix",
}

var trailingParenRe = regexp.MustCompile(`\s*\(([^()]*)\)\s*$`)

// Normalize implements the four-step algorithm in §4.4: strip junk, split
// on a separator, detect a version parenthetical, title-case the artist.
func Normalize(rawTitle, uploader string) Result {
	cleaned := stripJunk(rawTitle)

	artist, title := splitArtistTitle(cleaned, uploader)

	title, version := detectVersion(title)

	if artist == "" {
		artist = "Unknown Artist"
	}
	if title == "" {
		title = "Unknown Title"
	}

	return Result{
		Artist:  titleCaseArtist(artist),
		Title:   strings.TrimSpace(title),
		Version: version,
	}
}

// HasSeparator reports whether rawTitle contains one of the recognized
// artist/title separators, used by the Fingerprint Matcher to pick its
// acceptance threshold (§4.7 step 4).
func HasSeparator(rawTitle string) bool {
	for _, sep := range separators {
		if strings.Contains(rawTitle, sep) {
			return true
		}
	}
	return false
}

func stripJunk(s string) string {
	s = norm.NFC.String(s)
	s = bracketRe.ReplaceAllString(s, "")
	for _, tok := range junkTokens {
		for {
			idx := strings.Index(strings.ToLower(s), tok)
			if idx < 0 {
				break
			}
			s = s[:idx] + s[idx+len(tok):]
		}
	}
	s = emptyParensRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func splitArtistTitle(cleaned, uploader string) (artist, title string) {
	for _, sep := range separators {
		if idx := strings.Index(cleaned, sep); idx >= 0 {
			return strings.TrimSpace(cleaned[:idx]), strings.TrimSpace(cleaned[idx+len(sep):])
		}
	}
	artist = strings.TrimSpace(uploader)
	return artist, cleaned
}

func detectVersion(title string) (string, string) {
	m := trailingParenRe.FindStringSubmatch(title)
	if m == nil {
		return title, ""
	}
	content := strings.ToLower(m[1])
	for _, kw := range versionKeywords {
		if strings.Contains(content, kw) {
			version := strings.TrimSpace(m[1])
			stripped := strings.TrimSpace(trailingParenRe.ReplaceAllString(title, ""))
			return stripped, version
		}
	}
	return title, ""
}

// Render reproduces the predictable "Title (Version)" form used when a
// version was detected, so downstream tagging and round-trip tests have a
// single canonical shape to compare against.
func Render(title, version string) string {
	if version == "" {
		return title
	}
	return title + " (" + version + ")"
}
