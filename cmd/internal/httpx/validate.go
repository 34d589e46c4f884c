package httpx

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the process-wide validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldError names the first failing field of a struct validation.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

// ValidateStruct validates s and returns the first failing field, or nil.
// Errors that are not field failures are reported with Field "unknown".
func ValidateStruct(s any) *FieldError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &FieldError{Field: "unknown", Tag: "unknown"}
	}
	fe := verrs[0]
	return &FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()}
}
