// Package validator checks request payloads with struct tags and reports
// English messages keyed by JSON field name.
package validator

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	playground "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *playground.Validate
	translator ut.Translator

	handleRegex = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,30}$`)

	// custom validation tags
	handleTag   = "handle"
	notBlankTag = "notblank"
)

func init() {
	validate = playground.New()

	english := en.New()
	uni := ut.New(english, english)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(handleTag, func(fl playground.FieldLevel) bool {
		return handleRegex.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation(notBlankTag, func(fl playground.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	noop := func(ut.Translator) error { return nil }
	for _, tag := range []string{handleTag, notBlankTag} {
		_ = validate.RegisterTranslation(tag, translator, noop, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe playground.FieldError) string {
	switch fe.Tag() {
	case handleTag:
		return fe.Field() + " must be 3-30 letters, digits, dots or underscores"
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	default:
		return fe.Field() + " is invalid"
	}
}

// Error lists failing fields with a readable message each.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	messages := make([]string, 0, len(keys))
	for _, key := range keys {
		messages = append(messages, e.Fields[key])
	}
	return strings.Join(messages, "; ")
}

// Struct validates v and returns *Error when any field fails.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &Error{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		key := fe.Namespace()
		if idx := strings.Index(key, "."); idx >= 0 {
			key = key[idx+1:]
		}
		out.Fields[key] = fe.Translate(translator)
	}
	return out
}

// Var validates a single value against a tag list such as "required,min=1".
func Var(field string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &Error{Fields: map[string]string{}}
	for _, fe := range fieldErrs {
		out.Fields[field] = field + strings.TrimPrefix(fe.Translate(translator), fe.Field())
	}
	return out
}
