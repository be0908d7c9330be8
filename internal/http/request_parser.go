// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies are JSON objects (form-encoded bodies are accepted too); numbers are
// kept as their literal text so money never passes through float64.

package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ledger/internal/core"
)

const maxBodyBytes = 1 << 20

// RequestBodyParser reads a request body once and exposes typed field access.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once (up to 1 MiB) and stores it for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body as a JSON object or, failing the leading '{', as
// form data. A malformed body is a validation error.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = core.Invalid("body", msgInvalidBody)
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || trimmed[0] == '[' || strings.Contains(p.contentType, "json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		data := make(map[string]any)
		if err := dec.Decode(&data); err != nil {
			p.err = core.Invalid("body", msgInvalidBody)
			return p.err
		}
		p.jsonData = data
		return nil
	}

	form, err := url.ParseQuery(string(trimmed))
	if err != nil {
		p.err = core.Invalid("body", msgInvalidBody)
		return p.err
	}
	p.formData = form
	return nil
}

// Get returns a trimmed, sanitized string value; JSON null and absent keys are "".
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key carries a non-empty value.
func (p *RequestBodyParser) Has(key string) bool {
	return p.Get(key) != ""
}

// Require fails with "Missing required fields" naming the first absent key.
func (p *RequestBodyParser) Require(keys ...string) error {
	for _, k := range keys {
		if !p.Has(k) {
			return core.Invalid(k, msgMissingFields)
		}
	}
	return nil
}

// OptionalString returns nil for an absent or blank value.
func (p *RequestBodyParser) OptionalString(key string) *string {
	v := p.Get(key)
	if v == "" {
		return nil
	}
	return &v
}

// Date parses key as YYYY-MM-DD. An absent value yields the zero Date.
func (p *RequestBodyParser) Date(key, message string) (core.Date, error) {
	v := p.Get(key)
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.Invalid(key, message)
	}
	return d, nil
}

// Month parses key as YYYY-MM.
func (p *RequestBodyParser) Month(key, message string) (core.Month, error) {
	m, err := core.ParseMonth(p.Get(key))
	if err != nil {
		return "", core.Invalid(key, message)
	}
	return m, nil
}

// Money parses key as a non-negative decimal amount rounded to cents.
func (p *RequestBodyParser) Money(key, message string) (core.Money, error) {
	m, err := core.ParseMoney(p.Get(key))
	if err != nil {
		return core.Money{}, core.Invalid(key, message)
	}
	return m, nil
}

// Rate parses key as a non-negative percentage.
func (p *RequestBodyParser) Rate(key, message string) (core.Rate, error) {
	r, err := core.ParseRate(p.Get(key))
	if err != nil {
		return core.Rate{}, core.Invalid(key, message)
	}
	return r, nil
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to its text form.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
