package models

import (
	"errors"
	"fmt"
)

// TransientError marks a failure that should skip the current cycle only:
// network errors, timeouts, rate limits and upstream 5xx.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ParseError marks a payload that could not be decoded or validated.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigError is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func NewTransient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func NewParse(source string, err error) error {
	return &ParseError{Source: source, Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
