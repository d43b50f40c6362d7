// Package headers parses repeatable "Key: Value" CLI flags into header maps.
package headers

import "strings"

// Parse converts header strings of the form "Key: Value" into a map. Entries
// without a colon are dropped.
func Parse(h []string) map[string]string {
	m := make(map[string]string)
	for _, hdr := range h {
		parts := strings.SplitN(hdr, ":", 2)
		if len(parts) == 2 {
			m[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return m
}
