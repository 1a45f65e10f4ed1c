// Package validation checks and sanitizes untrusted tool parameters
// before they reach process execution.
//
// All checks are allow-list based: the threat model is an LLM-composed
// payload driving subprocess invocation, so anything not explicitly
// permitted is rejected.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	shellquote "github.com/kballard/go-shellquote"
)

const (
	// MaxRepoNameLength bounds owner/repo identifiers.
	MaxRepoNameLength = 200

	// MaxIssueNumber is the sanity ceiling for issue numbers.
	MaxIssueNumber = 999999999

	// DefaultMaxParamBytes bounds the JSON-serialized parameter payload.
	DefaultMaxParamBytes = 10000
)

var (
	repoNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+/[a-zA-Z0-9_.-]+$`)
	shellMetaChars  = regexp.MustCompile("[;|&$`()<>]")
)

// AllowedSources is the fixed allow-set for watch collection sources.
var AllowedSources = map[string]bool{
	"github":     true,
	"pypi":       true,
	"npm":        true,
	"reddit":     true,
	"hackernews": true,
}

// ValidationError reports a parameter that failed validation. The message
// is safe to return to the calling client.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func newError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateRepoName checks a GitHub repository identifier in owner/repo
// form. Path traversal and extra slashes are rejected by the pattern.
func ValidateRepoName(repo any) (string, error) {
	s, ok := repo.(string)
	if !ok {
		return "", newError("repo_name", "must be a string, got %T", repo)
	}
	if len(s) > MaxRepoNameLength {
		return "", newError("repo_name", "is too long (max %d characters)", MaxRepoNameLength)
	}
	if !repoNamePattern.MatchString(s) {
		return "", newError("repo_name", "invalid format %q, expected 'owner/repo'", s)
	}
	return s, nil
}

// ValidateIssueNumber coerces the value to a positive integer in
// [1, MaxIssueNumber]. JSON numbers arrive as float64; numeric strings
// are accepted for CLI callers.
func ValidateIssueNumber(issue any) (int, error) {
	var n int
	switch v := issue.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
		if float64(n) != v {
			return 0, newError("issue_number", "must be an integer, got %v", v)
		}
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, newError("issue_number", "invalid value %q", v.String())
		}
		n = int(parsed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, newError("issue_number", "invalid value %q", v)
		}
		n = parsed
	default:
		return 0, newError("issue_number", "must be a number, got %T", issue)
	}

	if n <= 0 {
		return 0, newError("issue_number", "must be a positive integer")
	}
	if n > MaxIssueNumber {
		return 0, newError("issue_number", "is too large (max %d)", MaxIssueNumber)
	}
	return n, nil
}

// ValidateSources checks that every element of the list is a string drawn
// from the source allow-set. One bad element fails the whole list.
func ValidateSources(sources any) ([]string, error) {
	list, ok := sources.([]any)
	if !ok {
		if typed, tok := sources.([]string); tok {
			converted := make([]any, len(typed))
			for i, s := range typed {
				converted[i] = s
			}
			list = converted
		} else {
			return nil, newError("sources", "must be a list, got %T", sources)
		}
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, newError("sources", "source must be a string, got %T", item)
		}
		if !AllowedSources[s] {
			return nil, newError("sources", "invalid source %q, allowed: %s", s, allowedSourceNames())
		}
		out = append(out, s)
	}
	return out, nil
}

// ValidateStringParam type-checks a string parameter with an optional
// maximum length (0 disables the length check).
func ValidateStringParam(name string, value any, maxLength int) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", newError(name, "must be a string, got %T", value)
	}
	if maxLength > 0 && len(s) > maxLength {
		return "", newError(name, "is too long (max %d characters)", maxLength)
	}
	return s, nil
}

// SanitizeString strips shell metacharacters and control characters from a
// free-text value and shell-quotes the remainder. Defense in depth only:
// parameters are always passed as an argv plus a JSON document on stdin,
// never interpolated into a shell command line.
func SanitizeString(value string) string {
	cleaned := shellMetaChars.ReplaceAllString(value, "")
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)
	return shellquote.Join(cleaned)
}

// ValidateParams enforces the whole-payload byte budget. It runs before
// any per-field validation; maxBytes <= 0 selects DefaultMaxParamBytes.
func ValidateParams(params map[string]any, maxBytes int) (map[string]any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxParamBytes
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, newError("params", "not serializable: %v", err)
	}
	if len(encoded) > maxBytes {
		return nil, newError("params", "payload is too large (max %d bytes)", maxBytes)
	}
	return params, nil
}

func allowedSourceNames() string {
	names := make([]string, 0, len(AllowedSources))
	for name := range AllowedSources {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
