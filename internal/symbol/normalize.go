// Package symbol canonicalizes instrument symbols and classifies them as
// 24/7 (crypto, futures) versus session-bound, per spec.md §4.1. Grounded on
// the teacher's internal/domain/pairs/filter.go symbol-shape checks, adapted
// to this spec's exact canonicalization and classification rules.
package symbol

import (
	"strings"

	"github.com/northbeam/quotecache/internal/apierr"
	"github.com/northbeam/quotecache/internal/market"
)

// allowedExtra holds the punctuation permitted in a canonical symbol beyond
// letters and digits.
const allowedExtra = "=.-^/"

// crypto24x7Suffixes are the literal suffixes that mark a symbol as trading
// around the clock even when metadata is unavailable or stale.
var crypto24x7Suffixes = []string{"-USD", "-USDT", "-USDC", "-BTC", "-ETH", "=F"}

// Canonicalize uppercases raw and strips any byte outside [A-Z0-9=.-^/].
// An empty result is rejected with InvalidArgument, per spec.md §4.1.
func Canonicalize(raw string) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || strings.ContainsRune(allowedExtra, r) {
			b.WriteRune(r)
		}
	}

	canon := b.String()
	if canon == "" {
		return "", apierr.New(apierr.KindInvalidArgument, "symbol canonicalizes to empty string")
	}
	return canon, nil
}

// Is24x7 reports whether symbol trades around the clock: either its cached
// metadata declares a crypto quote type, or its canonical form ends with one
// of the recognized crypto/futures suffixes.
func Is24x7(canonical string, meta market.Metadata) bool {
	if strings.EqualFold(meta.QuoteType, "crypto") || strings.EqualFold(meta.QuoteType, "cryptocurrency") {
		return true
	}
	for _, suf := range crypto24x7Suffixes {
		if strings.HasSuffix(canonical, suf) {
			return true
		}
	}
	return false
}
