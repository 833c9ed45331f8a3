// Package validate wraps go-playground/validator with the portal's custom
// tags and English error messages.
//
// Struct tags use JSON field names in error messages, so a failure on
// Volunteer.Pincode reads "pincode must be at least 6 characters in length"
// and carries Field "pincode" back to the form.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/model"
)

// custom validation tags
const (
	notBlankTag = "notblank"
	roleTag     = "role"
)

// Validator is safe for concurrent use once constructed.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New builds a Validator with English translations and the custom tags registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, notBlank)
	_ = v.RegisterValidation(roleTag, validRole)
	registerCustomTranslation(v, trans, notBlankTag, "{0} cannot be blank")
	registerCustomTranslation(v, trans, roleTag, "{0} must be admin or volunteer")

	return &Validator{validate: v, translator: trans}
}

// Struct validates s and returns the first failure as an
// apperror.ValidationFailed, or nil.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperror.ValidationFailed(fe.Field(), fe.Translate(v.translator))
	}
	return apperror.ValidationFailed("", err.Error())
}

// Var validates a single value against tag, naming it field in the error.
func (v *Validator) Var(field string, value any, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		msg := strings.TrimSpace(fieldErrs[0].Translate(v.translator))
		return apperror.ValidationFailed(field, field+" "+msg)
	}
	return apperror.ValidationFailed(field, err.Error())
}

func registerCustomTranslation(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}

func notBlank(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func validRole(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case model.Role:
		return v.Valid()
	case string:
		return model.Role(v).Valid()
	}
	return false
}
