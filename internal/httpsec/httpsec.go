// Package httpsec implements transport-level access control for the
// HTTP MCP transport: an Origin allow-list policy and bearer-token
// authentication.
//
// Both gates run before the MCP handler sees the request. Rejections
// carry the same {code, message, action} JSON body the tool layer uses,
// so a misconfigured client gets remediation instructions instead of a
// bare status code.
package httpsec

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/farce1/handover-sub002/internal/protocol"
)

// Config holds the resolved security posture for one server process.
type Config struct {
	// AllowedOrigins is the exact-match Origin allow-list. A single "*"
	// entry allows any origin. Empty means no browser origin is allowed.
	AllowedOrigins []string

	// Token is the expected bearer token. Empty disables the auth gate
	// (loopback-only deployments; preflight enforces this).
	Token string
}

// Wrap applies the origin policy and then bearer auth around next.
func Wrap(cfg Config, next http.Handler) http.Handler {
	return originPolicy(cfg, bearerAuth(cfg, next))
}

// originPolicy enforces the Origin allow-list and answers CORS
// preflight requests directly.
//
// Requests without an Origin header pass through untouched: same-origin
// and non-browser callers never see CORS headers. With an Origin header,
// the allow-list decides: empty list rejects, "*" echoes the wildcard
// (and never sets Vary), an exact match echoes the origin with
// Vary: Origin.
func originPolicy(cfg Config, next http.Handler) http.Handler {
	wildcard := false
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			wildcard = true
			continue
		}
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		switch {
		case wildcard:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		default:
			writeRejection(w, http.StatusForbidden, protocol.SecurityRejected(
				"origin_forbidden",
				fmt.Sprintf("origin %q is not in the allowed origins list", origin),
				"Add the origin to HANDOVER_ALLOWED_ORIGINS (or use '*' for any origin) and restart the server.",
			))
			return
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Mcp-Session-Id, Last-Event-ID")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerAuth enforces the Authorization header when a token is
// configured. The expected and presented tokens are both hashed to a
// fixed length before comparison, so tokens of different lengths never
// short-circuit the constant-time compare.
func bearerAuth(cfg Config, next http.Handler) http.Handler {
	if cfg.Token == "" {
		return next
	}
	want := sha256.Sum256([]byte(cfg.Token))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeRejection(w, http.StatusUnauthorized, protocol.SecurityRejected(
				"auth_missing",
				"missing Authorization header",
				"Send 'Authorization: Bearer <token>' with the configured token.",
			))
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeRejection(w, http.StatusUnauthorized, protocol.SecurityRejected(
				"auth_invalid_format",
				"Authorization header is not of the form 'Bearer <token>'",
				"Use the 'Bearer' scheme: 'Authorization: Bearer <token>'.",
			))
			return
		}

		got := sha256.Sum256([]byte(token))
		if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
			writeRejection(w, http.StatusUnauthorized, protocol.SecurityRejected(
				"auth_invalid_token",
				"bearer token does not match the configured token",
				"Check HANDOVER_AUTH_TOKEN on the server and use the same value in the client.",
			))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeRejection(w http.ResponseWriter, status int, err *protocol.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(protocol.Wire(err))
}
