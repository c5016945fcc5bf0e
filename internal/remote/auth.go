package remote

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"
)

func (s *Server) authorizeRequest(r *http.Request) bool {
	if s.cfg.Token == "" {
		return true
	}
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" && secureEqual(t, s.cfg.Token) {
		return true
	}
	if t := bearerToken(r.Header.Get("Authorization")); t != "" && secureEqual(t, s.cfg.Token) {
		return true
	}
	return false
}

func bearerToken(authHeader string) string {
	authHeader = strings.TrimSpace(authHeader)
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// allowWSOrigin accepts non-browser clients and same-host pages only.
func allowWSOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
