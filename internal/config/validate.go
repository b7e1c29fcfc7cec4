package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/robfig/cron/v3"
)

// ErrInvalid marks a configuration error. It is always fatal: a run with a
// bad configuration must not produce a document.
var ErrInvalid = errors.New("invalid configuration")

type validatorSvc struct {
	v     *validator.Validate
	trans ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *validatorSvc
)

func getValidator() *validatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// Report yaml key names, which is what users edit.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("yaml")
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			if tag == "" || tag == "-" {
				return fld.Name
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)

		_ = v.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
			_, err := cron.ParseStandard(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterTranslation("cronspec", trans,
			func(ut ut.Translator) error {
				return ut.Add("cronspec", "{0} must be a 5-field cron expression", true)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				msg, _ := ut.T("cronspec", fe.Field())
				return msg
			},
		)
		_ = v.RegisterTranslation("gtfield", trans,
			func(ut ut.Translator) error {
				return ut.Add("gtfield", "{0} must be greater than {1}", true)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				// Param is the Go field name; show the yaml key instead.
				p := fe.Param()
				if p != "" {
					p = strings.ToLower(p[:1]) + p[1:]
				}
				msg, _ := ut.T("gtfield", fe.Field(), p)
				return msg
			},
		)

		vSvc = &validatorSvc{v: v, trans: trans}
	})
	return vSvc
}

// Validate checks every field and returns a single error wrapping
// ErrInvalid that lists all failures.
func (c *Config) Validate() error {
	svc := getValidator()
	err := svc.v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(svc.trans))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
