// Package http serves the category and expense forms over HTTP.
//
// This file implements utilities for parsing and validating request data.
// Bodies may be JSON or form-encoded; both go through RequestBodyParser.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expensetracker/internal/core"
)

// maxBodyBytes caps request bodies; the forms are a handful of short fields.
const maxBodyBytes = 64 << 10

// expenseDateLayouts are tried in order. The first is what a datetime-local
// input submits.
var expenseDateLayouts = []string{
	"2006-01-02T15:04",
	time.RFC3339,
	"2006-01-02",
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
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

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
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

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
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

// parsePathID reads the {id} path segment.
func parsePathID(r *http.Request, msg string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError("id", msg)
	}
	return id, nil
}

// parseCategory builds a category from the form fields.
func parseCategory(p *RequestBodyParser) core.Category {
	return core.Category{
		Name:        p.Get("name"),
		Description: p.Get("description"),
	}
}

// parseExpense builds an expense from the form fields. Missing selections
// are left as zero values so the ledger reports them.
func parseExpense(p *RequestBodyParser) (core.Expense, error) {
	var e core.Expense

	if v := p.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return core.Expense{}, core.NewValidationError("category_id", "Please select a category")
		}
		e.CategoryID = id
	}

	if v := p.Get("payment_method"); v != "" {
		pm, err := core.ParsePaymentMethod(strings.ToUpper(v))
		if err != nil {
			return core.Expense{}, core.NewValidationError("payment_method", "Please select a payment method")
		}
		e.PaymentMethod = pm
	}

	description := p.Get("description")
	amount := p.Get("amount")
	date := p.Get("expense_date")
	if description == "" || amount == "" || date == "" {
		return core.Expense{}, core.NewValidationError("form", "Please fill all the fields")
	}

	v, err := core.ParseAmount(amount)
	if err != nil {
		return core.Expense{}, err
	}
	e.Amount = v
	e.Description = description

	e.ExpenseDate, err = parseExpenseDate(date)
	if err != nil {
		return core.Expense{}, err
	}

	return e, nil
}

// parseExpenseDate accepts the layouts in expenseDateLayouts. Values without
// a zone are read as UTC.
func parseExpenseDate(s string) (time.Time, error) {
	for _, layout := range expenseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, core.NewValidationError("expense_date", "Failed to parse date: "+s)
}
