package fingerprint

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jaki95/dropcrate/internal/domain"
)

const providerName = "acoustid+musicbrainz"

var trailingParenRe = regexp.MustCompile(`\(([^()]*)\)\s*$`)

// Matcher implements the L7 contract: match(audioPath, fallback,
// titleHadSeparator) -> MatchedMeta?.
type Matcher struct {
	fpcalcPath string
	apiKey     string
	acoustid   *acoustidClient
	metadata   *metadataClient
	cache      *Cache
}

// NewMatcher builds a Matcher. If apiKey is empty, Match always returns nil
// without performing any I/O, per §4.7's "skip entirely" clause.
func NewMatcher(fpcalcPath, apiKey, userAgent, cachePath string) *Matcher {
	return &Matcher{
		fpcalcPath: fpcalcPath,
		apiKey:     apiKey,
		acoustid:   newAcoustidClient(apiKey),
		metadata:   newMetadataClient(userAgent),
		cache:      NewCache(cachePath),
	}
}

// Match computes a fingerprint for audioPath, looks it up, resolves the
// winning recording's metadata, and merges the result into fallback. It
// returns (nil, fallback) whenever fingerprinting is unavailable,
// inconclusive, or below the confidence threshold — never an error for
// those cases, since a missing fingerprint must never block the pipeline.
func (m *Matcher) Match(ctx context.Context, audioPath string, fallback domain.NormalizedMetadata, titleHadSeparator bool) (*domain.FingerprintMatch, domain.NormalizedMetadata) {
	if m == nil || m.apiKey == "" {
		return nil, fallback
	}

	fp, err := runFpcalc(ctx, m.fpcalcPath, audioPath)
	if err != nil {
		return nil, fallback
	}

	key := cacheKey(fp.Duration, fp.Fingerprint)

	var resp acoustidResponse
	cached, ok, _ := m.cache.Get(key)
	if ok {
		if err := json.Unmarshal(cached, &resp); err != nil {
			ok = false
		}
	}
	if !ok {
		var raw []byte
		resp, raw, err = m.acoustid.lookup(ctx, fp.Duration, fp.Fingerprint)
		if err != nil {
			return nil, fallback
		}
		_ = m.cache.Put(key, raw)
	}

	best, found := bestMatch(resp)
	threshold := 0.85
	if titleHadSeparator {
		threshold = 0.95
	}
	if !found || best.Score < threshold {
		return nil, fallback
	}

	rec, err := m.metadata.resolve(ctx, best.RecordingID)
	if err != nil {
		return nil, fallback
	}

	merged := domain.NormalizedMetadata{
		Artist: rec.Artist,
		Title:  rec.Title,
		Album:  rec.Album,
		Year:   rec.Year,
		Label:  rec.Label,
	}
	if !hasTrailingParen(merged.Title) && fallback.Version != nil && *fallback.Version != "" {
		merged.Version = fallback.Version
	}

	applied := merged.Artist != fallback.Artist || merged.Title != fallback.Title

	match := &domain.FingerprintMatch{
		Provider:    providerName,
		Score:       best.Score,
		RecordingID: best.RecordingID,
		Artist:      rec.Artist,
		Title:       rec.Title,
		Album:       rec.Album,
		Year:        rec.Year,
		Label:       rec.Label,
		Applied:     applied,
	}
	return match, merged
}

func hasTrailingParen(title string) bool {
	return trailingParenRe.MatchString(title)
}

func cacheKey(duration float64, fingerprint string) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%v:%s", duration, fingerprint)))
	return hex.EncodeToString(h[:])
}
