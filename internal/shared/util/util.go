package util

import (
	"path"
	"sort"
	"strings"
)

// NormalizePath cleans a document path into the canonical forward-slash form
// used for node identity and pattern matching.
func NormalizePath(s string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// HasPathPrefix returns true when path equals prefix or is contained within prefix.
func HasPathPrefix(p, prefix string) bool {
	p = NormalizePath(p)
	prefix = NormalizePath(prefix)
	if p == "" || prefix == "" {
		return p == prefix
	}
	if p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

// CommonDirDepth counts how many leading directory segments two paths share.
func CommonDirDepth(a, b string) int {
	aDirs := strings.Split(path.Dir(NormalizePath(a)), "/")
	bDirs := strings.Split(path.Dir(NormalizePath(b)), "/")
	depth := 0
	for depth < len(aDirs) && depth < len(bDirs) && aDirs[depth] == bDirs[depth] {
		if aDirs[depth] == "." {
			break
		}
		depth++
	}
	return depth
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
