package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFeature indicates a manifest names a feature the catalog
	// does not provide.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrUnknownContract indicates a manifest names a contract the catalog
	// does not know.
	ErrUnknownContract = errors.New("unknown contract")

	// ErrUnknownRecipe indicates a lookup for a recipe the manifest does not
	// define.
	ErrUnknownRecipe = errors.New("unknown recipe")

	// ErrNotLoaded indicates the manager has no manifest yet.
	ErrNotLoaded = errors.New("manifest not loaded")
)

// LoadError is returned when the manifest file cannot be read.
type LoadError struct {
	// FilePath is the manifest path.
	FilePath string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load manifest %q: %v", e.FilePath, e.Cause)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ParseError is returned when a manifest is malformed or refers to
// something the catalog cannot build. Recipe and Feature are empty when the
// error is not specific to one.
type ParseError struct {
	FilePath string
	Line     int
	Recipe   string
	Feature  string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	where := "manifest"
	if e.FilePath != "" {
		where = fmt.Sprintf("manifest %q", e.FilePath)
	}
	if e.Line > 0 {
		where += fmt.Sprintf(" at line %d", e.Line)
	}
	switch {
	case e.Recipe != "" && e.Feature != "":
		where += fmt.Sprintf(", recipe %q, feature %q", e.Recipe, e.Feature)
	case e.Recipe != "":
		where += fmt.Sprintf(", recipe %q", e.Recipe)
	}

	msg := e.Message
	if e.Cause != nil {
		if msg == "" {
			msg = e.Cause.Error()
		} else {
			msg += ": " + e.Cause.Error()
		}
	}
	return fmt.Sprintf("parse error in %s: %s", where, msg)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
