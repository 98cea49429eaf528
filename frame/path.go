package frame

import "strings"

// cleanPath resolves the path-URI convention: a plain path is used
// as-is, and a "file://" prefix is stripped (so "file:///a/b.b2frame"
// becomes "/a/b.b2frame").
func cleanPath(p string) string {
	return strings.TrimPrefix(p, "file://")
}
