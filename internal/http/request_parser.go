// Package http provides the web UI and JSON API of the budget tracker.
//
// This file holds the request body parsing shared by the form and JSON
// handlers.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"studentbudget/internal/core"
	"studentbudget/internal/services"
)

// maxBodyBytes bounds every form or JSON body.
const maxBodyBytes = 64 << 10

var errBodyTooLarge = errors.New("request body too large")

// RequestBodyParser reads a request body once and serves fields from it,
// whether it was sent as JSON or as a url-encoded form.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse decodes the body as JSON when it looks like an object, and as a
// form otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}
	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns the sanitized value of key, or "".
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

// Raw returns the value of key without sanitizing. Passwords are compared
// exactly as typed.
func (p *RequestBodyParser) Raw(key string) string {
	if p.jsonData != nil {
		return stringValue(p.jsonData[key])
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
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

// RegistrationForm maps the registration fields. Baseline amounts use the
// snake_case column name of each category.
func (p *RequestBodyParser) RegistrationForm() services.RegistrationForm {
	form := services.RegistrationForm{
		Name:          p.Get("name"),
		Password:      p.Raw("password"),
		Age:           p.Get("age"),
		Gender:        p.Get("gender"),
		Baseline:      make(map[core.Category]string, len(core.Categories())),
		MonthlyIncome: p.Get("monthly_income"),
	}
	for _, cat := range core.Categories() {
		form.Baseline[cat] = p.Get(baselineField(cat))
	}
	return form
}

func (p *RequestBodyParser) ExpenseForm() services.ExpenseForm {
	return services.ExpenseForm{
		Category:       p.Get("category"),
		CustomCategory: p.Get("custom_category"),
		Amount:         p.Get("amount"),
		Date:           p.Get("date"),
		Note:           p.Get("note"),
	}
}

// Credentials returns the login name and password.
func (p *RequestBodyParser) Credentials() (name, password string) {
	return p.Get("username"), p.Raw("password")
}
