package classify

import "github.com/jaki95/dropcrate/internal/domain"

// ConfidenceFloor is the minimum confidence at which a classification is
// allowed to overwrite the caller's existing DJ Tags.
const ConfidenceFloor = 0.6

// Merge applies the policy from §4.6 uniformly whether c came from the
// heuristic or LLM classifier: low-confidence results never overwrite,
// non-music kinds clear the tags, otherwise non-null fields are adopted.
// Merge is idempotent: applying it twice with the same c and the result of
// the first application produces the same output again.
func Merge(existing domain.DJTags, c domain.Classification) domain.DJTags {
	if c.Confidence < ConfidenceFloor {
		return existing
	}

	if c.Kind != domain.KindTrack && c.Kind != domain.KindSet {
		return domain.DJTags{Genre: domain.GenreOther, Energy: "", Time: "", Vibe: ""}
	}

	out := existing
	if c.Tags.Genre != "" {
		out.Genre = c.Tags.Genre
	}
	if c.Tags.Energy != "" {
		out.Energy = c.Tags.Energy
	}
	if c.Tags.Time != "" {
		out.Time = c.Tags.Time
	}
	if c.Tags.Vibe != "" {
		out.Vibe = c.Tags.Vibe
	}
	return out
}
