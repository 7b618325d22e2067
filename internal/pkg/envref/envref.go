// Package envref resolves "${VAR}" references against the process
// environment.
package envref

import (
	"os"
	"regexp"
	"strings"
)

// LookupFunc mirrors os.LookupEnv.
type LookupFunc func(key string) (string, bool)

var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// IsRef reports whether s contains at least one reference.
func IsRef(s string) bool {
	return refPattern.MatchString(s)
}

// Resolve expands every reference in s. Unset or empty variables are
// reported in missing and expand to "".
func Resolve(s string, lookup LookupFunc) (value string, missing []string) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value = refPattern.ReplaceAllStringFunc(s, func(m string) string {
		key := refPattern.FindStringSubmatch(m)[1]
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
			return ""
		}
		return v
	})
	return value, missing
}

// Value resolves s against the process environment and ignores missing
// variables.
func Value(s string) string {
	v, _ := Resolve(s, os.LookupEnv)
	return v
}
