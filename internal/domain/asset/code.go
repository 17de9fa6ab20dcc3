package asset

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeCode canonicalizes a decoded tag value so the same printed code
// always maps to the same key, whatever the scanner emitted.
func NormalizeCode(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}
