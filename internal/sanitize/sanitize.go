// Package sanitize validates values before they are bound into SQL
// statements. It is a second line of defense behind parameter binding, not a
// replacement for it.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// Sanitizer checks a single value and returns it unchanged when it is safe to
// bind. Implementations must be stateless and side-effect free.
type Sanitizer interface {
	Sanitize(value any) (any, error)
}

// InvalidInputError reports a value rejected by a Sanitizer.
type InvalidInputError struct {
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s (value: %q)", e.Reason, e.Value)
}

// defaultKeywords are SQL keywords that never appear as standalone words in
// legitimate scraped values. Matching is case-insensitive and space-delimited,
// so "DROPBOX" or "users;drop" pass while "x'; DROP TABLE" does not.
var defaultKeywords = []string{
	"ALTER", "DROP", "TRUNCATE", "RENAME",
	"INSERT", "UPDATE", "DELETE", "MERGE", "SELECT",
	"GRANT", "REVOKE",
	"COMMIT", "ROLLBACK", "SAVEPOINT", "RELEASE SAVEPOINT",
}

// defaultSafePattern allows alphanumerics, whitespace and the punctuation that
// shows up in titles, URLs and prose. Everything else is rejected outright.
var defaultSafePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-$_.,:|;/\[\]?=<>#&!’%+()"']*$`)

// Strict is the default Sanitizer. Non-string values pass through unchanged;
// strings must match the safe pattern and contain no blacklisted keyword.
type Strict struct {
	keywords []string
	safe     *regexp.Regexp
}

// NewStrict returns a Strict sanitizer with the default pattern and keyword
// list.
func NewStrict() *Strict {
	return &Strict{
		keywords: defaultKeywords,
		safe:     defaultSafePattern,
	}
}

// NewStrictWith returns a Strict sanitizer using a custom keyword list and
// safe-string pattern. Either argument may be nil to keep the default.
func NewStrictWith(keywords []string, safe *regexp.Regexp) *Strict {
	s := NewStrict()
	if keywords != nil {
		s.keywords = keywords
	}
	if safe != nil {
		s.safe = safe
	}
	return s
}

// Sanitize implements Sanitizer. It never mutates the value: the result is
// either the input itself or an *InvalidInputError.
func (s *Strict) Sanitize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	str, ok := value.(string)
	if !ok {
		return value, nil
	}
	if !s.safe.MatchString(str) {
		return nil, &InvalidInputError{
			Value:  str,
			Reason: "contains characters outside the allowed set",
		}
	}
	padded := " " + strings.ToUpper(str) + " "
	for _, kw := range s.keywords {
		if strings.Contains(padded, " "+kw+" ") {
			return nil, &InvalidInputError{
				Value:  str,
				Reason: fmt.Sprintf("contains restricted SQL keyword %q", kw),
			}
		}
	}
	return str, nil
}
