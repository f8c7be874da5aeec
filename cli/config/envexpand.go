// Package config loads the optional sparring.yaml file that supplies
// defaults for command flags.
package config

import (
	"os"
	"strings"
)

// ExpandEnv substitutes ${VAR} and ${VAR:-default} references in a config
// file. A variable that is unset or empty takes its default, or the empty
// string without one; required values such as an adapter URL fail later
// validation instead. Bare $VAR, malformed names and unterminated
// references are copied through unchanged.
func ExpandEnv(input string) string {
	var b strings.Builder
	rest := input
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			break
		}
		end += start

		b.WriteString(rest[:start])
		if value, ok := lookupRef(rest[start+2 : end]); ok {
			b.WriteString(value)
		} else {
			b.WriteString(rest[start : end+1])
		}
		rest = rest[end+1:]
	}
	b.WriteString(rest)
	return b.String()
}

// lookupRef resolves the body of one reference. ok is false when the name
// is not a valid variable name.
func lookupRef(ref string) (value string, ok bool) {
	name, fallback, _ := strings.Cut(ref, ":-")
	if !isVarName(name) {
		return "", false
	}
	if v := os.Getenv(name); v != "" {
		return v, true
	}
	return fallback, true
}

func isVarName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
