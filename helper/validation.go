package helper

import (
	"errors"
	"reflect"
	"strings"

	"itsm-knowledge-base/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	validatorv10 "github.com/go-playground/validator/v10"
	en_v10 "github.com/go-playground/validator/v10/translations/en"
	"gopkg.in/go-playground/validator.v9"
	en_translations "gopkg.in/go-playground/validator.v9/translations/en"
)

// bindTranslator renders the request binding errors of gin's validator.
var bindTranslator ut.Translator

// gin caches struct metadata on first bind, so the binding engine is set up
// before any request is served.
func init() {
	engine, ok := binding.Validator.Engine().(*validatorv10.Validate)
	if !ok {
		return
	}
	engine.RegisterTagNameFunc(jsonTagName)

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	if err := en_v10.RegisterDefaultTranslations(engine, trans); err != nil {
		panic(err)
	}
	bindTranslator = trans
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// Validator checks struct tags and reports every violation with an English
// message, naming fields by their json names.
type Validator struct {
	Validate   *validator.Validate
	Translator ut.Translator
}

func NewValidator() *Validator {
	validate := validator.New()
	validate.RegisterTagNameFunc(jsonTagName)

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(err)
	}
	return &Validator{Validate: validate, Translator: trans}
}

// FieldErrors validates v and returns every violation, or nil.
func (u *Validator) FieldErrors(v interface{}) []models.FieldError {
	err := u.Validate.Struct(v)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []models.FieldError{{Field: "", Message: err.Error()}}
	}
	out := make([]models.FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		out = append(out, models.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: fe.Translate(u.Translator),
		})
	}
	return out
}

// fieldPath drops the struct name from a namespace like "ArticleInput.tags[2]".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// BindFieldErrors converts the validation failures of a gin bind into field
// errors named like FieldErrors names them. ok is false for errors that are
// not validation failures.
func BindFieldErrors(err error) (fields []models.FieldError, ok bool) {
	var validationErrors validatorv10.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, false
	}
	fields = make([]models.FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		message := fe.Error()
		if bindTranslator != nil {
			message = fe.Translate(bindTranslator)
		}
		fields = append(fields, models.FieldError{Field: fieldPath(fe.Namespace()), Message: message})
	}
	return fields, true
}
