package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

const (
	maxTitleLength   = 200
	maxContentLength = 5000
	maxReasonLength  = 500
)

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)data:text/html`),
}

type sanitizer struct {
	policy *bluemonday.Policy
}

func newSanitizer() *sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "u", "ol", "ul", "li")
	return &sanitizer{policy: p}
}

// clean validates user text and strips markup outside the allowed tag set.
func (z *sanitizer) clean(field, text string, maxLen int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.Validation(field + " is required")
	}
	if utf8.RuneCountInString(text) > maxLen {
		return "", domain.Validation(field + " is too long")
	}
	for _, p := range dangerousPatterns {
		if p.MatchString(text) {
			return "", domain.Validation(field + " contains disallowed content")
		}
	}
	out := strings.TrimSpace(z.policy.Sanitize(text))
	if out == "" {
		return "", domain.Validation(field + " is required")
	}
	return out, nil
}
