package util

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// placeholderRegex matches {key}, {key?} and {{...}} style markers.
var placeholderRegex = regexp.MustCompile(`{+[^{}]*}+`)

// StateLookup resolves a state key.
type StateLookup func(key string) (any, bool)

// InjectState replaces {key} placeholders in text with session state values.
// A trailing '?' marks the key optional: absent optional keys render as an
// empty string, absent required keys are an error. Markers whose content is
// not an identifier (e.g. "{...}" inside prose) are left untouched.
func InjectState(text string, lookup StateLookup) (string, error) {
	if !strings.Contains(text, "{") {
		return text, nil
	}

	var firstErr error

	out := placeholderRegex.ReplaceAllStringFunc(text, func(match string) string {
		if firstErr != nil {
			return match
		}

		name := strings.TrimSpace(strings.Trim(match, "{}"))
		optional := strings.HasSuffix(name, "?")
		name = strings.TrimSpace(strings.TrimSuffix(name, "?"))

		if !isIdentifier(name) {
			return match
		}

		v, ok := lookup(name)
		if !ok {
			if optional {
				return ""
			}
			firstErr = fmt.Errorf("context variable not found: `%s`", name)
			return match
		}

		return formatStateValue(v)
	})

	if firstErr != nil {
		return "", firstErr
	}

	return out, nil
}

func formatStateValue(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case fmt.Stringer:
		return vv.String()
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}

	return string(b)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
