package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// SameOrigin rejects requests whose Origin, or Referer when Origin is
// absent, differs from appURL. Outside production a request carrying
// neither header passes; in production it is rejected.
func SameOrigin(appURL string, production bool) func(http.Handler) http.Handler {
	expected := originOf(appURL)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				if production {
					writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			got := strings.TrimSpace(r.Header.Get("Origin"))
			if got == "" {
				got = originOf(r.Header.Get("Referer"))
			}
			if got == "" && !production {
				next.ServeHTTP(w, r)
				return
			}
			if got != expected {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
