package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/farellandr/ridehail/internal/apperrors"
	"github.com/farellandr/ridehail/internal/helpers"
)

var (
	registerOnce sync.Once
	phonePattern = regexp.MustCompile(`^\+?[0-9]{6,15}$`)
	phoneFillers = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// RegisterValidators names validation errors after JSON fields and adds the
// phone rule. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(NormalizePhone(fl.Field().String()))
		})
	})
}

// NormalizePhone strips spaces, dashes and parentheses.
func NormalizePhone(phone string) string {
	return phoneFillers.Replace(strings.TrimSpace(phone))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return apperrors.ErrMissingFields.Message
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "phone":
		return fmt.Sprintf("%s must contain 6 to 15 digits", fe.Field())
	case "latitude", "longitude":
		return fmt.Sprintf("%s is not a valid %s", fe.Field(), fe.Tag())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gte", "gt":
		return fmt.Sprintf("%s must not be negative", fe.Field())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// bindJSON binds the body into req and answers 400 itself when that fails.
func bindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var validationErr *apperrors.ValidationError
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.Is(err, io.EOF):
		helpers.RespondWithAppError(c, apperrors.ErrMissingFields, "")
	case errors.As(err, &validationErr):
		helpers.RespondWithAppError(c, validationErr, "")
	case errors.As(err, &fieldErrs) && len(fieldErrs) > 0:
		helpers.RespondWithAppError(c, apperrors.FieldError(fieldErrs[0].Field(), fieldMessage(fieldErrs[0])), "")
	default:
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid request payload")
	}
	return false
}
