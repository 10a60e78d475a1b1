package httpapi

import (
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/northbeam/quotecache/internal/symbol"
)

// normalizeSymbol canonicalizes a raw path/query symbol value.
func normalizeSymbol(raw string) (string, error) {
	return symbol.Canonicalize(raw)
}

const (
	maxQuoteSymbols   = 50
	maxPrewarmSymbols = 20
)

// parseExt parses the spec's boolean vocabulary for the ext query param:
// {1, true, yes, on} (case-insensitive) are true, anything else is false.
func parseExt(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// parseSince parses a non-negative epoch-seconds watermark, clamping
// negative or unparseable input to 0.
func parseSince(raw string) int64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseTimeframe lowercases tf, defaulting to "5m" when blank; unknown
// names are resolved later by config.Lookup.
func parseTimeframe(raw string) string {
	tf := strings.ToLower(strings.TrimSpace(raw))
	if tf == "" {
		return "5m"
	}
	return tf
}

// parseSymbolsCSV dedupes a comma-separated symbol list preserving first
// occurrence and caps it at max entries.
func parseSymbolsCSV(raw string, max int) []string {
	if raw == "" {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, max)
	for _, part := range strings.Split(raw, ",") {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}

// sortedCopy returns a sorted copy of ss without mutating the input.
func sortedCopy(ss []string) []string {
	out := make([]string, len(ss))
	copy(out, ss)
	sort.Strings(out)
	return out
}

// clientID derives a stable per-client identity for rate-limit accounting.
// The core has no auth layer, so the request's remote IP is the identity.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
