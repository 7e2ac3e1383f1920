package config

import (
	"net/http"
	"strings"
)

// originChecker allows requests without Origin and those whose Origin is
// listed. "*" allows every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimSpace(o))] = struct{}{}
	}

	if _, ok := set["*"]; ok {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
