package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type Code int

const (
	Internal   Code = http.StatusInternalServerError
	NotFound   Code = http.StatusNotFound
	Validation Code = http.StatusBadRequest
)

// Error is a custom error
type Error struct {
	Code     Code     `json:"code"`
	Messages []string `json:"messages"`
	Err      error    `json:"-"`
}

// Error returns the Error as a json string
func (e *Error) Error() string {
	type view struct {
		Code     Code     `json:"code"`
		Messages []string `json:"messages"`
		Err      string   `json:"err,omitempty"`
	}
	v := view{Code: e.Code, Messages: e.Messages}
	if v.Code == 0 {
		v.Code = http.StatusOK
	}
	if e.Err != nil {
		v.Err = e.Err.Error()
	}
	bits, _ := json.Marshal(v)
	return string(bits)
}

// Unwrap returns the wrapped error so errors.Is and errors.As can reach it
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new error with the given code and formatted message
func New(code Code, msg string, args ...any) error {
	return &Error{
		Code:     code,
		Messages: []string{fmt.Sprintf(msg, args...)},
	}
}

// Extract extracts the custom Error from the given error
func Extract(err error) *Error {
	e, ok := err.(*Error)
	if !ok {
		return &Error{
			Code:     0,
			Messages: nil,
			Err:      err,
		}
	}
	return e
}

// Wrap wraps the given error and returns a new one. A nil error is returned as nil.
func Wrap(err error, code Code, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if ok {
		wrapped := &Error{
			Code:     e.Code,
			Messages: append([]string{}, e.Messages...),
			Err:      e.Err,
		}
		if msg != "" {
			wrapped.Messages = append(wrapped.Messages, fmt.Sprintf(msg, args...))
		}
		if code > 0 {
			wrapped.Code = code
		}
		return wrapped
	}
	wrapped := &Error{
		Code: code,
		Err:  err,
	}
	if msg != "" {
		wrapped.Messages = append(wrapped.Messages, fmt.Sprintf(msg, args...))
	}
	return wrapped
}
