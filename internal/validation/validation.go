// Package validation accumulates per-field input errors so a request is
// rejected with every violation at once, before any store mutation.
package validation

import (
	"fmt"
	"net/mail"
	"strings"
)

// Messages shared across schemas.
const (
	MsgRequired     = "Requerido"
	MsgInvalidEmail = "Email inválido"
	MsgInvalidType  = "Tipo inválido"
)

// FieldError describes one violated field. Nested fields use dotted paths
// with array indices, e.g. "results[0].status".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error carries every field violation found in one input.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Collector records field errors under an optional path prefix. Nested
// collectors share the parent's error list.
type Collector struct {
	prefix string
	errs   *[]FieldError
}

// New returns an empty collector.
func New() *Collector {
	return &Collector{errs: &[]FieldError{}}
}

func (c *Collector) path(field string) string {
	if c.prefix == "" {
		return field
	}
	if strings.HasPrefix(field, "[") {
		return c.prefix + field
	}
	return c.prefix + "." + field
}

// Add records a violation for field.
func (c *Collector) Add(field, message string) {
	*c.errs = append(*c.errs, FieldError{Field: c.path(field), Message: message})
}

// Nested returns a collector whose fields are reported under field.
func (c *Collector) Nested(field string) *Collector {
	return &Collector{prefix: c.path(field), errs: c.errs}
}

// Index returns a collector for the i-th element of the array field.
func (c *Collector) Index(field string, i int) *Collector {
	return &Collector{prefix: c.path(fmt.Sprintf("%s[%d]", field, i)), errs: c.errs}
}

// Err returns nil when nothing was recorded, otherwise an *Error.
func (c *Collector) Err() error {
	if len(*c.errs) == 0 {
		return nil
	}
	return &Error{Fields: append([]FieldError(nil), *c.errs...)}
}

// Present records a missing-field error when v is nil and required is set.
// It reports whether v was supplied.
func Present[T any](c *Collector, field string, v *T, required bool) bool {
	if v != nil {
		return true
	}
	if required {
		c.Add(field, MsgRequired)
	}
	return false
}

// NonEmpty checks that a supplied string has visible content.
func (c *Collector) NonEmpty(field string, v *string, required bool, message string) {
	if !Present(c, field, v, required) {
		return
	}
	if strings.TrimSpace(*v) == "" {
		c.Add(field, message)
	}
}

// MinLen checks that a supplied string has at least n characters.
func (c *Collector) MinLen(field string, v *string, n int, required bool, message string) {
	if !Present(c, field, v, required) {
		return
	}
	if len([]rune(*v)) < n {
		c.Add(field, message)
	}
}

// Email checks that a supplied string is a bare email address.
func (c *Collector) Email(field string, v *string, required bool, message string) {
	if !Present(c, field, v, required) {
		return
	}
	if !IsEmail(*v) {
		c.Add(field, message)
	}
}

// NonNegative checks that a supplied number is >= 0.
func (c *Collector) NonNegative(field string, v *float64, required bool, message string) {
	if !Present(c, field, v, required) {
		return
	}
	if *v < 0 {
		c.Add(field, message)
	}
}

// OneOf checks that a supplied value belongs to allowed.
func OneOf[T ~string](c *Collector, field string, v *T, required bool, allowed []T) {
	if !Present(c, field, v, required) {
		return
	}
	for _, a := range allowed {
		if *v == a {
			return
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = "'" + string(a) + "'"
	}
	c.Add(field, fmt.Sprintf("Valor inválido. Se esperaba %s, se recibió '%s'", strings.Join(names, " | "), string(*v)))
}

// IsEmail reports whether s is a single address without display name.
func IsEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}
