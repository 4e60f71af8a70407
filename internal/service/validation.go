package service

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tgardela/event-manager/internal/model"
	"github.com/tgardela/event-manager/internal/sanitize"
)

// Code tags a ValidationError so callers can tell failures apart.
type Code string

const (
	CodeInvalidField           Code = "invalid_field"
	CodeInvalidTimeRange       Code = "invalid_time_range"
	CodeStartInPast            Code = "start_in_past"
	CodeEndInPast              Code = "end_in_past"
	CodeCapacityBelowAttendees Code = "capacity_below_attendees"
	CodeInvalidQuery           Code = "invalid_query"
	CodeInvalidBody            Code = "invalid_body"
)

// ValidationError is a rejected input. Fields maps JSON field names to
// per-field messages when the failure is tied to specific fields.
type ValidationError struct {
	Code    Code
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is matches any ValidationError with the same code, so errors.Is works
// against the sentinels below regardless of field details.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidTimeRange = &ValidationError{Code: CodeInvalidTimeRange, Message: "Event can't end before it starts."}
	ErrStartInPast      = &ValidationError{Code: CodeStartInPast, Message: "Event can't start in the past."}
	ErrEndInPast        = &ValidationError{Code: CodeEndInPast, Message: "Event can't end in the past."}

	ErrCapacityBelowAttendees = &ValidationError{
		Code:    CodeCapacityBelowAttendees,
		Message: "Capacity can't be lower than the number of registered attendees.",
		Fields:  map[string]string{"capacity": "Capacity can't be lower than the number of registered attendees."},
	}
)

// IsValidation reports whether err is a ValidationError of any code.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct runs the validator tags on s and folds failures into a
// single ValidationError keyed by JSON field name.
func checkStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &ValidationError{Code: CodeInvalidField, Message: "Invalid input.", Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		if fe.Kind() == reflect.String {
			return "Ensure this field has no more than " + fe.Param() + " characters."
		}
		return "Ensure this value is less than or equal to " + fe.Param() + "."
	case "min":
		if fe.Kind() == reflect.String {
			return "Ensure this field has at least " + fe.Param() + " characters."
		}
		return "Ensure this value is greater than or equal to " + fe.Param() + "."
	case "email":
		return "Enter a valid email address."
	case "eqfield":
		return "Password fields didn't match."
	default:
		return "Invalid value."
	}
}

// NormalizeEvent strips markup from the free-text fields of req.
func NormalizeEvent(req model.EventRequest) model.EventRequest {
	req.Name = sanitize.Text(req.Name)
	req.Description = sanitize.Text(req.Description)
	return req
}

// ValidateEvent checks req against the event invariants as of now and
// returns the first failing rule. An inverted time range is reported before
// anything else; then field checks; then the start and end against now.
func ValidateEvent(req model.EventRequest, now time.Time) error {
	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && req.EndTime.Before(req.StartTime) {
		return ErrInvalidTimeRange
	}
	if err := checkStruct(req); err != nil {
		return err
	}

	switch {
	case req.StartTime.Before(now):
		return ErrStartInPast
	case req.EndTime.Before(now):
		return ErrEndInPast
	}
	return nil
}
