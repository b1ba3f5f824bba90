package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bizbalance/internal/core"
)

// maxBodyBytes bounds form and JSON bodies. Imports have their own limit.
const maxBodyBytes = 1 << 20

// errBadInput marks values that could not be parsed at all.
var errBadInput = errors.New("invalid input")

// RequestBodyParser reads a request body once and exposes its fields
// whether it was sent as JSON or form-encoded, the latter being what HTMX
// posts.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser creates a parser for the given request.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
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
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data.
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

// Decode unmarshals a JSON body into v.
func (p *RequestBodyParser) Decode(v any) error {
	if !p.IsJSON() {
		return fmt.Errorf("%w: expected a JSON object", errBadInput)
	}
	return json.Unmarshal(p.body, v)
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

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

// ParseTransaction builds a transaction for ownerID from the parsed body.
// The result still has to pass Validate.
func ParseTransaction(p *RequestBodyParser, ownerID string) (core.Transaction, error) {
	t := core.Transaction{
		OwnerID:     ownerID,
		Description: p.Get("description"),
		Category:    p.Get("category"),
	}

	kind, err := core.ParseKind(firstNonEmpty(p.Get("type"), p.Get("kind")))
	if err != nil {
		return t, err
	}
	t.Kind = kind

	amount, err := core.ParseMoney(p.Get("amount"))
	if err != nil {
		return t, err
	}
	t.Amount = amount

	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		if errors.Is(err, core.ErrMissingDate) {
			return t, err
		}
		return t, fmt.Errorf("%w: %w", core.ErrMissingDate, err)
	}
	t.Date = date
	return t, nil
}

// ParseAppointment builds an appointment for ownerID from the parsed body.
func ParseAppointment(p *RequestBodyParser, ownerID string) (core.Appointment, error) {
	a := core.Appointment{
		OwnerID:   ownerID,
		Title:     p.Get("title"),
		StartTime: firstNonEmpty(p.Get("start_time"), p.Get("startTime")),
		EndTime:   firstNonEmpty(p.Get("end_time"), p.Get("endTime")),
	}
	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		if errors.Is(err, core.ErrMissingDate) {
			return a, err
		}
		return a, fmt.Errorf("%w: %w", core.ErrMissingDate, err)
	}
	a.Date = date
	return a, nil
}

// converseRequest is the body of a chat turn. Form posts carry the history
// as a JSON string in the "history" field.
type converseRequest struct {
	History []core.Message `json:"history"`
	Message string         `json:"message"`
}

// ParseConverse reads a chat turn from either body encoding.
func ParseConverse(p *RequestBodyParser) (converseRequest, error) {
	var req converseRequest
	if p.IsJSON() {
		if err := p.Decode(&req); err != nil {
			return req, fmt.Errorf("%w: %w", errBadInput, err)
		}
	} else {
		req.Message = p.Get("message")
		if raw := p.Get("history"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.History); err != nil {
				return req, fmt.Errorf("%w: history: %w", errBadInput, err)
			}
		}
	}
	req.Message = sanitizeInput(req.Message)
	for i, m := range req.History {
		role, err := core.ParseRole(string(m.Role))
		if err != nil {
			return req, err
		}
		req.History[i].Role = role
	}
	return req, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// RequireMethod returns an error response when r uses none of methods.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}
