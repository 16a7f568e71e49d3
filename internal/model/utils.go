package model

import "strings"

// TruncateString caps a string at maxLength bytes.
func TruncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength]
}

// NormalizeKey turns a raw name into its stable canonical key: lowercased,
// trimmed, inner whitespace runs collapsed to a single hyphen. The same raw
// input yields the same key on every run.
func NormalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return ""
	}
	return strings.Join(strings.Fields(lowered), "-")
}
