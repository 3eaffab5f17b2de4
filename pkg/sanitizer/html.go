// Package sanitizer strips markup from recipient-supplied fields before they
// are interpolated into mail HTML.
package sanitizer

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy *bluemonday.Policy
	initOnce     sync.Once
)

func initPolicies() {
	initOnce.Do(func() {
		// StrictPolicy drops every element and escapes what is left as text.
		strictPolicy = bluemonday.StrictPolicy()
	})
}

// StripTags removes all HTML from s and returns HTML-safe text.
// Element content survives, so "<b>Kim</b>" becomes "Kim"; scripts and styles are dropped
// entirely. Characters significant to HTML are returned as entities.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	initPolicies()
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}

// Custom applies a caller-supplied bluemonday policy.
// Returns input unchanged if policy is nil.
func Custom(s string, policy *bluemonday.Policy) string {
	if policy == nil {
		return s
	}
	return policy.Sanitize(s)
}
