// Package validator hooks gin's binding validator up with JSON field
// names and english translations, so binding failures surface as a
// field -> message map instead of Go struct namespaces.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var translate ut.Translator

// InitValidator registers the JSON tag name func and the english
// translations on gin's shared validator engine. Call once at startup,
// before the server starts binding requests.
func InitValidator() {
	engine, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	engine.RegisterTagNameFunc(jsonFieldName)

	locale := en.New()
	translate, _ = ut.New(locale, locale).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(engine, translate)
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// ParseValidationError flattens a binding error into a field -> message
// map keyed by JSON field names. Errors that are not validator field
// errors (malformed JSON, wrong content type) collapse into a single
// body entry.
func ParseValidationError(err error) map[string]string {
	out := make(map[string]string)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out["body"] = "request body could not be parsed"
		return out
	}

	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i != -1 {
			field = field[i+1:]
		}

		msg := fe.Translate(translate)
		if fe.Tag() == "oneof" {
			msg = fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(fe.Param(), " ", ", "))
		}
		out[field] = msg
	}
	return out
}
