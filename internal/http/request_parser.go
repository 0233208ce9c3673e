package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"optionsworth/internal/core"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once, up to maxBodyBytes, and stores it for subsequent
// parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = fmt.Errorf("read body: %v: %w", p.err, errBadRequest)
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = fmt.Errorf("malformed JSON: %v: %w", err, errBadRequest)
		}
		return p.err
	}

	p.formData, p.err = url.ParseQuery(body)
	if p.err != nil {
		p.err = fmt.Errorf("malformed form: %v: %w", p.err, errBadRequest)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// stringValue converts a decoded JSON value to the string a user would have
// typed.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// fieldChange is a "set <field> to <value>" request from either the HTML
// form or the JSON API.
type fieldChange struct {
	Field string
	Value float64
}

// parseFieldChange reads the field and value parameters. Values go through
// core.ParseNumber so "12,5" from a form and 12.5 from JSON behave alike.
func parseFieldChange(w http.ResponseWriter, r *http.Request) (fieldChange, error) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return fieldChange{}, err
	}

	field := p.Get("field")
	if field == "" {
		return fieldChange{}, fmt.Errorf("missing field: %w", core.ErrUnknownField)
	}
	raw := p.Get("value")
	value, err := core.ParseNumber(raw)
	if err != nil {
		return fieldChange{}, fmt.Errorf("value %q: %w", raw, err)
	}
	return fieldChange{Field: field, Value: value}, nil
}

func parseRateChange(w http.ResponseWriter, r *http.Request) (core.RateField, float64, error) {
	c, err := parseFieldChange(w, r)
	if err != nil {
		return "", 0, err
	}
	f, err := core.ParseRateField(c.Field)
	return f, c.Value, err
}

func parseGrantChange(w http.ResponseWriter, r *http.Request) (core.GrantField, float64, error) {
	c, err := parseFieldChange(w, r)
	if err != nil {
		return "", 0, err
	}
	f, err := core.ParseGrantField(c.Field)
	return f, c.Value, err
}

// parseIndex reads the {index} path segment. Anything that is not a
// non-negative integer cannot address a grant.
func parseIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("grant index %q: %w", raw, core.ErrOutOfRange)
	}
	return i, nil
}

// isHTMX reports whether the request came from htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
