// Package validators plugs go-playground/validator into Echo.
package validators

import (
	"net/http"
	"strings"

	"github.com/anonto42/eyewitness/backend/internal/mentions"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator implements echo.Validator
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator returns a validator ready to be set as e.Validator. Besides the
// built-in tags it understands "handle": a value that can follow an '@' in a mention.
func NewValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return mentions.IsHandle(fl.Field().String())
	})
	return &CustomValidator{validator: v}
}

// Validate runs struct tag validation and reports failures as 400s.
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, Describe(err))
	}
	return nil
}

// Describe turns validation errors into a short readable message.
func Describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Field() + " failed on " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}
