package entity

import "strings"

// HandoffToolPrefix prefixes the synthetic tools that transfer control.
// Bound tool servers may not expose tools with this prefix.
const HandoffToolPrefix = "transfer_to_"

// HandoffToolName is the transfer tool name for an agent.
func HandoffToolName(agent string) string {
	return HandoffToolPrefix + SanitizeName(agent)
}

// SanitizeName maps name onto the characters model APIs accept in tool and
// participant names.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
