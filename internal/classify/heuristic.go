// Package classify implements the heuristic (L5) and LLM (L6) classifiers
// and the policy for merging either's output into a Processing Preset's
// DJ Tags.
package classify

import (
	"strings"

	"github.com/jaki95/dropcrate/internal/domain"
)

var tutorialCues = []string{
	"how to dj", "tutorial", "lesson", "masterclass", "rekordbox", "serato",
	"cdj", "beatmatch",
}

var liveSetCues = []string{
	"dj set", "live set", "dj mix", "boiler room", "essential mix", "session",
	"radio show",
}

var podcastCues = []string{"podcast", "episode", "interview"}

var musicSignalTags = []string{"music", "song", "track", "single", "album"}

const (
	warmupMinutes  = 20.0 * 60
	podcastMinutes = 15.0 * 60
)

// genreTable is ordered most-specific-first so e.g. "melodic techno" is
// matched before the bare "techno" fallback.
var genreTable = []struct {
	genre    string
	keywords []string
}{
	{"Afro House", []string{"afro house", "afrohouse"}},
	{"Amapiano", []string{"amapiano"}},
	{"Hard Techno", []string{"hard techno"}},
	{"Melodic Techno", []string{"melodic techno"}},
	{"Minimal Techno", []string{"minimal techno"}},
	{"Acid Techno", []string{"acid techno"}},
	{"Peak Time Techno", []string{"peak time techno", "peak-time techno"}},
	{"Melodic House & Techno", []string{"melodic house", "melodic house & techno"}},
	{"Techno", []string{"techno"}},
	{"Tech House", []string{"tech house"}},
	{"Progressive House", []string{"progressive house"}},
	{"Deep House", []string{"deep house"}},
	{"Funky House", []string{"funky house"}},
	{"Soulful House", []string{"soulful house"}},
	{"Jackin House", []string{"jackin house"}},
	{"Bass House", []string{"bass house"}},
	{"House", []string{"house"}},
	{"Drum & Bass", []string{"drum & bass", "drum and bass", "dnb", "d&b"}},
	{"Dubstep", []string{"dubstep"}},
	{"UK Garage", []string{"uk garage", "ukg"}},
	{"Breaks", []string{"breaks", "breakbeat"}},
	{"Psytrance", []string{"psytrance", "psy-trance"}},
	{"Uplifting Trance", []string{"uplifting trance"}},
	{"Trance", []string{"trance"}},
	{"Disco", []string{"disco", "nu-disco", "nu disco"}},
	{"Electro", []string{"electro"}},
	{"Downtempo", []string{"downtempo", "down tempo"}},
}

var warmupKeywords = []string{"warmup", "warm up", "opening"}
var peakKeywords = []string{"peak", "festival", "main stage"}
var closingKeywords = []string{"closing", "afterhours", "after hours"}

var vibeKeywords = []struct {
	vibe     string
	keywords []string
}{
	{"Organic", []string{"organic"}},
	{"Tribal", []string{"tribal"}},
	{"Latin", []string{"latin"}},
	{"Minimal", []string{"minimal"}},
	{"Dark", []string{"dark"}},
	{"Vocal", []string{"vocal"}},
	{"Instrumental", []string{"instrumental"}},
	{"Driving", []string{"driving"}},
	{"Hypnotic", []string{"hypnotic"}},
}

// Classify implements the deterministic decision tree from §4.5. It is a
// total function: it never returns an error.
func Classify(info domain.ExtractedInfo) domain.Classification {
	haystack := strings.ToLower(strings.Join([]string{info.Title, info.Uploader, info.Description}, "\n"))
	haystack += "\n" + strings.ToLower(strings.Join(info.Categories, "\n"))
	haystack += "\n" + strings.ToLower(strings.Join(info.Tags, "\n"))

	kind, kindKnown := classifyKind(haystack, info)

	confidence := 0.0
	if kindKnown {
		confidence += 0.25
	}
	musicSignal := containsAny(haystack, musicSignalTags)
	if musicSignal {
		confidence += 0.15
	}

	if kind == domain.KindVideo || kind == domain.KindPodcast {
		notes := "no DJ tags applicable for this content kind"
		return domain.Classification{
			Kind:       kind,
			Tags:       domain.DJTags{Genre: "", Energy: "", Time: "", Vibe: ""},
			Confidence: clamp01(confidence),
			Notes:      notes,
			Source:     domain.SourceHeuristic,
		}
	}

	genre := matchGenre(haystack)
	if genre != "" {
		confidence += 0.4
	} else {
		genre = domain.GenreOther
	}

	energy, timeOfDay := matchEnergyTime(haystack)
	if energy != "" || timeOfDay != "" {
		confidence += 0.15
	}

	vibe := matchVibe(haystack)
	if vibe != "" {
		confidence += 0.1
	}

	return domain.Classification{
		Kind: kind,
		Tags: domain.DJTags{
			Genre:  genre,
			Energy: energy,
			Time:   timeOfDay,
			Vibe:   vibe,
		},
		Confidence: clamp01(confidence),
		Notes:      "",
		Source:     domain.SourceHeuristic,
	}
}

func classifyKind(haystack string, info domain.ExtractedInfo) (domain.Kind, bool) {
	switch {
	case containsAny(haystack, tutorialCues):
		return domain.KindVideo, true
	case containsAny(haystack, liveSetCues) && (info.DurationS == 0 || info.DurationS >= warmupMinutes):
		return domain.KindSet, true
	case containsAny(haystack, podcastCues) && !containsAny(haystack, liveSetCues) && info.DurationS >= podcastMinutes:
		return domain.KindPodcast, true
	case containsAny(haystack, musicSignalTags):
		return domain.KindTrack, true
	case strings.TrimSpace(info.Title) != "":
		return domain.KindVideo, true
	default:
		return domain.KindUnknown, false
	}
}

func matchGenre(haystack string) string {
	for _, entry := range genreTable {
		for _, kw := range entry.keywords {
			if strings.Contains(haystack, kw) {
				return entry.genre
			}
		}
	}
	return ""
}

func matchEnergyTime(haystack string) (energy, timeOfDay string) {
	switch {
	case containsAny(haystack, warmupKeywords):
		return "2/5", domain.TimeWarmup
	case containsAny(haystack, peakKeywords):
		return "4/5", domain.TimePeak
	case containsAny(haystack, closingKeywords):
		return "3/5", domain.TimeClosing
	default:
		return "", ""
	}
}

func matchVibe(haystack string) string {
	var hits []string
	for _, entry := range vibeKeywords {
		if containsAny(haystack, entry.keywords) {
			hits = append(hits, entry.vibe)
		}
	}
	return strings.Join(hits, ",")
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
