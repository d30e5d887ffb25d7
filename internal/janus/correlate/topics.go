package correlate

import (
	"errors"
	"strings"
)

const (
	RequestPrefix  = "verify/request/"
	ResponsePrefix = "verify/response/"
)

var ErrInvalidSubject = errors.New("invalid subject")

// ValidSubject reports whether s can be used as a topic suffix. Subjects
// must be non-empty and free of separators, whitespace and glob characters.
func ValidSubject(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	return !strings.ContainsAny(s, "/*?[] \t\r\n")
}

func RequestTopic(subject string) string  { return RequestPrefix + subject }
func ResponseTopic(subject string) string { return ResponsePrefix + subject }

// SubjectFromTopic strips prefix from topic and validates the remainder.
func SubjectFromTopic(prefix, topic string) (string, bool) {
	s, ok := strings.CutPrefix(topic, prefix)
	if !ok || !ValidSubject(s) {
		return "", false
	}
	return s, true
}
