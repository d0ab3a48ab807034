// Package validation provides documentation-quality checks for the
// skill corpus: required frontmatter fields, metadata shape, and
// resolvable file references.
package validation

import (
	"errors"
	"fmt"
)

// Error represents a validation failure with context.
type Error struct {
	// Skill is the skill directory the failure belongs to.
	Skill string
	// Field is the field or file that failed validation.
	Field string
	// Message describes the validation failure.
	Message string
	// Err is the underlying error (if any).
	Err error
}

// Error returns a formatted validation error message.
func (ve *Error) Error() string {
	prefix := ve.Field
	if ve.Skill != "" {
		prefix = ve.Skill + ": " + ve.Field
	}
	if ve.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, ve.Message, ve.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, ve.Message)
}

// Unwrap returns the underlying error for errors.Is/As.
func (ve *Error) Unwrap() error {
	return ve.Err
}

// Errors collects multiple validation errors.
type Errors []error

// Error returns a formatted error message for all validation failures.
func (ve Errors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	return fmt.Sprintf("%d validation errors:\n%s", len(ve), errors.Join(ve...))
}

// Result contains the outcome of validating a corpus.
type Result struct {
	// SkillsChecked is the number of skill directories examined.
	SkillsChecked int
	// Warnings contains non-fatal issues.
	Warnings []string
	// Errors contains failures that should fail the lint.
	Errors []error
}

// AddError records a validation failure.
func (r *Result) AddError(err error) {
	r.Errors = append(r.Errors, err)
}

// AddErrorf records a validation failure for a skill field.
func (r *Result) AddErrorf(skill, field, format string, args ...any) {
	r.Errors = append(r.Errors, &Error{
		Skill:   skill,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// AddWarning records a non-fatal issue.
func (r *Result) AddWarning(skill, msg string) {
	if skill != "" {
		msg = skill + ": " + msg
	}
	r.Warnings = append(r.Warnings, msg)
}

// Valid returns true if no errors were recorded.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns the combined validation error, or nil.
func (r *Result) Err() error {
	switch len(r.Errors) {
	case 0:
		return nil
	case 1:
		return r.Errors[0]
	default:
		return Errors(r.Errors)
	}
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	if r.Valid() && len(r.Warnings) == 0 {
		return fmt.Sprintf("%d skill(s) checked, all passed", r.SkillsChecked)
	}
	if r.Valid() {
		return fmt.Sprintf("%d skill(s) checked, passed with %d warning(s)", r.SkillsChecked, len(r.Warnings))
	}
	return fmt.Sprintf("%d skill(s) checked, %d error(s), %d warning(s)", r.SkillsChecked, len(r.Errors), len(r.Warnings))
}
