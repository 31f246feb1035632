package watch

import (
	"path/filepath"
	"strings"
)

// ExtensionFilter matches paths against an extension allow-list. An empty
// list matches every path. Comparison is case-insensitive and looks only at
// the text after the last dot of the final path segment, so extension-less
// paths never match a non-empty list.
type ExtensionFilter struct {
	allowed map[string]struct{}
}

// NewExtensionFilter normalizes the given extensions: leading dots are
// stripped and casing is ignored, so "TXT", "txt" and ".txt" are equivalent.
// Blank entries are dropped.
func NewExtensionFilter(extensions []string) *ExtensionFilter {
	filter := &ExtensionFilter{}
	for _, extension := range extensions {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
		if normalized == "" {
			continue
		}
		if filter.allowed == nil {
			filter.allowed = make(map[string]struct{})
		}
		filter.allowed[normalized] = struct{}{}
	}
	return filter
}

// Match reports whether the path passes the allow-list.
func (filter *ExtensionFilter) Match(path string) bool {
	if filter == nil || len(filter.allowed) == 0 {
		return true
	}
	base := filepath.Base(path)
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 || dot == len(base)-1 {
		return false
	}
	_, ok := filter.allowed[strings.ToLower(base[dot+1:])]
	return ok
}

// Empty reports whether the filter matches everything.
func (filter *ExtensionFilter) Empty() bool {
	return filter == nil || len(filter.allowed) == 0
}
