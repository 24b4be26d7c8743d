package rest

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"browserctl/pkg/apierrors"
)

// bodyValidator adapts go-playground/validator to echo.Echo's Validator
// interface, replacing the handlers' former hand-rolled field checks.
type bodyValidator struct {
	v *validator.Validate
}

func newBodyValidator() *bodyValidator {
	return &bodyValidator{v: validator.New()}
}

func (bv *bodyValidator) Validate(i interface{}) error {
	return bv.v.Struct(i)
}

// validateBody runs echo's registered Validator over body, mapping any
// failure onto the same VALIDATION_FAILED envelope writeError produces.
func validateBody(c echo.Context, body interface{}) *apierrors.APIError {
	err := c.Validate(body)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return apierrors.ValidationFailed(fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
	}
	return apierrors.ValidationFailed(err.Error())
}
