package extractor

import (
	"strings"

	"github.com/jaki95/dropcrate/internal/domain"
)

// taxonomyEntry pairs an error kind with the stderr signal keywords that
// identify it and a user-facing hint. Ordered most-specific-first so e.g.
// "age" + "restricted" is checked before the generic network fallback.
type taxonomyEntry struct {
	kind     domain.ErrorKind
	keywords []string
	hint     string
}

var taxonomy = []taxonomyEntry{
	{domain.ErrKindRateLimited, []string{"429", "too many requests", "rate limit"}, "The source is rate-limiting requests; this will be retried automatically."},
	{domain.ErrKindGeoBlocked, []string{"not available in your country", "geo", "blocked"}, "This content is not available in your region."},
	{domain.ErrKindAgeRestricted, []string{"age restricted", "age gate", "age-restricted"}, "Set cookies-from-browser to use your login and bypass the age gate."},
	{domain.ErrKindPrivate, []string{"private video"}, "This video is private and cannot be downloaded."},
	{domain.ErrKindUnavailable, []string{"video unavailable", "removed", "deleted"}, "This content has been removed or is no longer available."},
	{domain.ErrKindLoginRequired, []string{"sign in", "login", "members only"}, "Set cookies-from-browser to use your login."},
	{domain.ErrKindCopyright, []string{"copyright", "claimed", "takedown"}, "This content was taken down for a copyright claim."},
	{domain.ErrKindNetworkError, []string{"network", "connection", "timeout", "timed out"}, "A network error occurred; this will be retried automatically."},
	{domain.ErrKindUnsupported, []string{"unsupported url", "unable to extract"}, "This URL is not supported by the extractor."},
}

// classifyStderr maps combined stderr output to an error kind per §4.2's
// taxonomy table. Matching is case-insensitive; the first matching entry
// wins in taxonomy's declared order.
func classifyStderr(stderr string) (domain.ErrorKind, string) {
	lower := strings.ToLower(stderr)
	for _, entry := range taxonomy {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.kind, entry.hint
			}
		}
	}
	return domain.ErrKindExtractorUnknown, "An unknown error occurred while fetching this item."
}
