package model

import (
	"bytes"
	"fmt"
)

// ValidationError is a single model validation failure with context.
type ValidationError struct {
	Field      string // field path, e.g. "attributes[0].type"
	Message    string
	Suggestion string // helpful suggestion (optional)
}

// Error returns a formatted error message.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation error at %s: %s", e.Field, e.Message)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(". Suggestion: %s", e.Suggestion)
	}
	return msg
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error returns all validation errors formatted with clear separation.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("found %d validation errors:\n", len(e)))
	for i, err := range e {
		buf.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return buf.String()
}

// Validate checks a parsed definition for structural problems.
func Validate(def *Definition) error {
	var errs ValidationErrors

	if def.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "model name is required",
		})
	}

	if def.Table != "" && !IsSnake(def.Table) {
		errs = append(errs, ValidationError{
			Field:      "table",
			Message:    fmt.Sprintf("table name %q is not lower_snake_case", def.Table),
			Suggestion: fmt.Sprintf("use %q", SnakeCase(def.Table)),
		})
	}

	if len(def.Attributes) == 0 {
		errs = append(errs, ValidationError{
			Field:   "attributes",
			Message: "at least one attribute is required",
		})
	}

	seen := make(map[string]bool)
	for i, attr := range def.Attributes {
		field := fmt.Sprintf("attributes[%d]", i)

		if attr.Name == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "attribute name is required",
			})
			continue
		}

		name := SnakeCase(attr.Name)
		if seen[name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate attribute %q", name),
			})
		}
		seen[name] = true

		if !ValidAttributeType(attr.Type) {
			errs = append(errs, ValidationError{
				Field:      field + ".type",
				Message:    fmt.Sprintf("unknown attribute type %q", attr.Type),
				Suggestion: "one of: string, text, integer, smallint, bigint, float, double, decimal, boolean, date, datetime, time, timestamp, timestamp_tz, json, blob, enum",
			})
		}

		if attr.Type == TypeEnum && len(attr.EnumValues) == 0 {
			errs = append(errs, ValidationError{
				Field:      field + ".enum_values",
				Message:    "enum attribute requires a non-empty ordered tuple of values",
				Suggestion: "add enum_values: [value1, value2]",
			})
		}
		if attr.Type != TypeEnum && len(attr.EnumValues) > 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".enum_values",
				Message: fmt.Sprintf("enum_values is only valid for type enum, not %q", attr.Type),
			})
		}
	}

	for i, rel := range def.Relations {
		field := fmt.Sprintf("relations[%d]", i)

		if rel.Name == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "relation name is required",
			})
		}
		if !relationKinds[rel.Kind] {
			errs = append(errs, ValidationError{
				Field:      field + ".kind",
				Message:    fmt.Sprintf("unknown relation kind %q", rel.Kind),
				Suggestion: "one of: belongs_to, has_one, has_many, belongs_to_many",
			})
		}
		if rel.Model == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".model",
				Message: "relation target model is required",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
