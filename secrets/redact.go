package secrets

import "strings"

// RedactedPlaceholder replaces secret values in captured output.
const RedactedPlaceholder = "[REDACTED]"

// Redactor masks secret values in arbitrary text. It is safe for concurrent
// use and deliberately value-based: any occurrence of a secret value is
// masked no matter which stage or step echoed it.
type Redactor struct {
	replacer *strings.Replacer
}

// NewRedactor builds a Redactor for the given secret values.
// Empty values are ignored so the replacer cannot degenerate into a no-op
// that inserts placeholders between every character.
func NewRedactor(values ...string) *Redactor {
	pairs := make([]string, 0, len(values)*2)
	for _, v := range values {
		if v == "" {
			continue
		}
		pairs = append(pairs, v, RedactedPlaceholder)
	}
	return &Redactor{replacer: strings.NewReplacer(pairs...)}
}

// Redact returns s with every known secret value masked.
func (r *Redactor) Redact(s string) string {
	if r == nil || r.replacer == nil {
		return s
	}
	return r.replacer.Replace(s)
}
