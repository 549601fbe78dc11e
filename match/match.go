// Package match decides whether a product title satisfies a site's keyword rule.
package match

import (
	"strings"

	"catalog-watcher/pkg/watcher"
)

// Matches reports whether title satisfies keywords.
//
// In partial mode every keyword must appear in the title as a case-insensitive
// substring; an empty rule therefore matches every title. In exact mode the trimmed
// title must equal one of the trimmed keywords, ignoring case.
func Matches(title string, keywords watcher.Keywords, exact bool) bool {
	normalized := strings.ToLower(strings.TrimSpace(title))

	if exact {
		for _, kw := range keywords {
			if normalized == strings.ToLower(strings.TrimSpace(kw)) {
				return true
			}
		}
		return false
	}

	for _, kw := range keywords {
		if !strings.Contains(normalized, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}
