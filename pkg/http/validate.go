package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// ReadAndValidateRequest binds the request, fills `default` tags on unset
// fields and validates the result. Returns nil on success, otherwise a
// value suitable for BadRequestResponse.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) interface{} {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		errs := make([]ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			errs = append(errs, fieldError(fe))
		}
		return errs
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{
			Code:    "ERR_UNKNOWN",
			Message: fmt.Sprintf("%v", he.Message),
		}}
	}

	return []ValidationError{{
		Code:    "ERR_UNKNOWN",
		Message: err.Error(),
	}}
}

// fieldError renders one validator failure with a human message and the
// machine-readable params a client needs to correct the field.
func fieldError(fe validator.FieldError) ValidationError {
	ve := ValidationError{
		Code:   "ERR_" + strings.ToUpper(fe.Tag()),
		Field:  fe.Field(),
		Params: map[string]interface{}{},
	}

	switch fe.Tag() {
	case "required":
		ve.Message = fmt.Sprintf("%s is required", fe.Field())
	case "gte", "min":
		ve.Message = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
		ve.Params["min"] = fe.Param()
	case "lte", "max":
		ve.Message = fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
		ve.Params["max"] = fe.Param()
	case "gt":
		ve.Message = fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
		ve.Params["value"] = fe.Param()
	case "lt":
		ve.Message = fmt.Sprintf("%s must be less than %s", fe.Field(), fe.Param())
		ve.Params["value"] = fe.Param()
	case "oneof":
		ve.Message = fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
		ve.Params["options"] = strings.Split(fe.Param(), " ")
	case "datetime":
		ve.Message = fmt.Sprintf("%s must be a date in the form %s", fe.Field(), fe.Param())
		ve.Params["layout"] = fe.Param()
	default:
		ve.Message = fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
	}
	return ve
}
