// Package preflight verifies serve prerequisites before the server
// accepts its first connection. Both checks fail fast and fail closed:
// a broken document catalog or an unauthenticated non-loopback bind
// refuses to start rather than serving degraded or open.
package preflight

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/farce1/handover-sub002/internal/catalog"
)

// VerifyServePrerequisites checks that every document in the catalog
// exists on disk and is non-empty. The catalog index is built from the
// docs directory, so an empty catalog means generation never ran.
func VerifyServePrerequisites(c *catalog.Catalog) error {
	docs := c.Docs()
	if len(docs) == 0 {
		return fmt.Errorf("document catalog is empty: run the generation step (regenerate_docs or the generator CLI) before serving")
	}

	var missing, empty []string
	for _, d := range docs {
		info, err := os.Stat(d.Path())
		switch {
		case err != nil:
			missing = append(missing, d.Name)
		case info.Size() == 0:
			empty = append(empty, d.Name)
		}
	}

	if len(missing) == 0 && len(empty) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "document catalog is incomplete: %d missing, %d empty", len(missing), len(empty))
	if len(missing) > 0 {
		fmt.Fprintf(&b, "; missing: %s", strings.Join(missing, ", "))
	}
	if len(empty) > 0 {
		fmt.Fprintf(&b, "; empty: %s", strings.Join(empty, ", "))
	}
	b.WriteString("; run the generation step to rebuild the documentation set")
	return fmt.Errorf("%s", b.String())
}

// VerifyHTTPSecurityPrerequisites refuses a non-loopback bind without a
// configured auth token. host is the bind host (no port).
func VerifyHTTPSecurityPrerequisites(host, token string) error {
	if isLoopback(host) {
		return nil
	}
	if token == "" {
		return fmt.Errorf(
			"refusing to bind to non-loopback host %q without authentication: set HANDOVER_AUTH_TOKEN (or the auth_token config field), or bind to 127.0.0.1",
			host)
	}
	return nil
}

// isLoopback treats localhost and the loopback IP ranges as local-only
// binds. An empty host means ":port", which listens on every interface,
// so it is not loopback. An unresolvable hostname is not loopback.
func isLoopback(host string) bool {
	if host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
