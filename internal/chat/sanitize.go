package chat

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxQueryLength = 500

var (
	ErrBlocked    = errors.New("query blocked by prompt guard")
	ErrEmptyQuery = errors.New("empty query")
)

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ignore\s+(previous|all|above|prior)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`reveal\s+(system|internal|secret|hidden)\s+(prompt|instructions?|key|config)`),
	regexp.MustCompile(`(show|print|display|output)\s+(system\s+prompt|instructions|config)`),
	regexp.MustCompile(`act\s+as\s+if\s+you\s+have\s+no\s+restrictions`),
	regexp.MustCompile(`pretend\s+you\s+are\s+(not|no\s+longer)\s+(an?\s+)?ai`),
	regexp.MustCompile(`(what|show|reveal)\s+(is|are)\s+your\s+(system|initial)\s+(prompt|instructions)`),
	regexp.MustCompile(`\bsudo\b`),
	regexp.MustCompile(`\b(api.?key|secret.?key|password|credentials|connection.?string)\b`),
}

// Sanitize rejects prompt injection attempts and truncates long queries.
func Sanitize(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}

	lowered := strings.ToLower(query)
	for _, p := range injectionPatterns {
		if p.MatchString(lowered) {
			return query, ErrBlocked
		}
	}

	if utf8.RuneCountInString(query) > MaxQueryLength {
		query = string([]rune(query)[:MaxQueryLength])
	}
	return query, nil
}
