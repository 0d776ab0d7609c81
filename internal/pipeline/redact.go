package pipeline

import (
	"regexp"
	"strings"
)

// RedactedMarker replaces credentials in persisted error text.
const RedactedMarker = "REDACTED_API_KEY"

var (
	bearerRe = regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9._~+/=-]+`)
	keyRe    = regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?token|secret)\b(\s*[:=]\s*)[^\s"'&]+`)
)

// Redact removes every non-empty secret from msg, then masks anything that
// still looks like a bearer token or an api_key=... pair.
func Redact(msg string, secrets ...string) string {
	for _, s := range secrets {
		if s != "" {
			msg = strings.ReplaceAll(msg, s, RedactedMarker)
		}
	}
	msg = bearerRe.ReplaceAllString(msg, "${1} "+RedactedMarker)
	return keyRe.ReplaceAllString(msg, "${1}${2}"+RedactedMarker)
}
