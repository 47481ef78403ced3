package search

import (
	"regexp"
	"strings"
)

// filterPattern matches key:value or key:"quoted value"
var filterPattern = regexp.MustCompile(`([\w-]+):("([^"]*)"|(\S+))`)

// Query is a parsed list search
type Query struct {
	// Free-text terms, in order
	Terms []string
	// Filter values keyed by lower-cased filter name
	Filters map[string][]string
	Raw     string
}

// ParseQuery splits raw into free-text terms and key:value filters. Only keys in
// allowed are filters; any other key:value pair stays a term.
func ParseQuery(raw string, allowed ...string) Query {
	keys := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		keys[strings.ToLower(k)] = true
	}

	q := Query{Terms: []string{}, Filters: map[string][]string{}, Raw: raw}
	rest := filterPattern.ReplaceAllStringFunc(raw, func(m string) string {
		sub := filterPattern.FindStringSubmatch(m)
		key := strings.ToLower(sub[1])
		if !keys[key] {
			return m
		}
		value := sub[3]
		if value == "" {
			value = sub[4]
		}
		q.Filters[key] = append(q.Filters[key], value)
		return " "
	})
	q.Terms = append(q.Terms, strings.Fields(rest)...)
	return q
}

// Text returns the free-text terms joined by spaces
func (q Query) Text() string {
	return strings.Join(q.Terms, " ")
}

// Get returns the last value given for a filter
func (q Query) Get(key string) (string, bool) {
	values := q.Filters[strings.ToLower(key)]
	if len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

// HasFilters reports whether any filter was given
func (q Query) HasFilters() bool {
	return len(q.Filters) > 0
}
