// Package bpath tokenizes and splits slash-separated paths. It plays the
// role the teacher's Pathparts_t plays over ustr.Ustr, adapted to plain
// Go strings since we have no allocation-free zero-copy requirement here.
package bpath

import "strings"

// Split breaks path into its non-empty components, dropping any number
// of repeated or leading/trailing slashes. "/a//b/" yields ["a", "b"].
func Split(path string) []string {
	raw := strings.Split(path, "/")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// IsAbs reports whether path is rooted.
func IsAbs(path string) bool {
	return strings.HasPrefix(path, "/")
}
