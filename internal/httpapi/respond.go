package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/northbeam/quotecache/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a typed apierr to its HTTP status and a small JSON body;
// an error that doesn't wrap apierr.Error is treated as internal.
func writeError(w http.ResponseWriter, err error) {
	if e, ok := apierr.As(err); ok {
		writeJSON(w, apierr.HTTPStatus(e.Kind), map[string]string{
			"error":  string(e.Kind),
			"detail": e.Detail,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":  "internal",
		"detail": err.Error(),
	})
}

func setRateLimitHeaders(w http.ResponseWriter, limit, remaining int) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
}
