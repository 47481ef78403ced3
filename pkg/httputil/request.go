package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// ParseJSON decodes the request body into dest, rejecting unknown fields
func ParseJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and answers 400 on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParsePathStringOrError returns a mux path variable, answering 400 when it is empty
func ParsePathStringOrError(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val := mux.Vars(r)[key]
	if val == "" {
		WriteBadRequest(w, "missing path parameter: "+key)
		return "", false
	}
	return val, true
}

// queryValue parses the query parameter key with parse. A missing parameter yields
// def; a malformed one names the expected kind in the error.
func queryValue[T any](r *http.Request, key, kind string, def T, parse func(string) (T, error)) (T, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("invalid %s for query param %s: %s", kind, key, raw)
	}
	return v, nil
}

// ParseQueryInt parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	return queryValue(r, key, "integer", defaultVal, strconv.Atoi)
}

// ParseQueryBool parses a boolean query parameter
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	return queryValue(r, key, "boolean", defaultVal, strconv.ParseBool)
}

// ParseQueryTime parses an RFC 3339 timestamp query parameter. Missing values return nil.
func ParseQueryTime(r *http.Request, key string) (*time.Time, error) {
	return queryValue(r, key, "time", (*time.Time)(nil), func(raw string) (*time.Time, error) {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, err
		}
		return &t, nil
	})
}

// Page is a limit/offset window over a listing. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads the limit and offset query parameters. A missing limit yields def;
// maxLimit caps the limit when positive. Negative values are rejected.
func ParsePage(r *http.Request, def, maxLimit int) (Page, error) {
	var p Page
	var err error
	if p.Limit, err = ParseQueryInt(r, "limit", def); err != nil {
		return p, err
	}
	if p.Offset, err = ParseQueryInt(r, "offset", 0); err != nil {
		return p, err
	}
	if p.Limit < 0 || p.Offset < 0 {
		return p, fmt.Errorf("limit and offset must not be negative")
	}
	if maxLimit > 0 && (p.Limit == 0 || p.Limit > maxLimit) {
		p.Limit = maxLimit
	}
	return p, nil
}

// Validator reports whether a value is valid and the message to answer with when not
type Validator func() (bool, string)

// NonEmpty requires a non-empty string
func NonEmpty(fieldName, value string) Validator {
	return func() (bool, string) {
		return value != "", fmt.Sprintf("%s is required", fieldName)
	}
}

// ValidateAll runs the validators in order and answers 400 with the first failure
func ValidateAll(w http.ResponseWriter, validators ...Validator) bool {
	for _, validator := range validators {
		if valid, errMsg := validator(); !valid {
			WriteBadRequest(w, errMsg)
			return false
		}
	}
	return true
}
