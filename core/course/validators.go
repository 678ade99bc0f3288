package course

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

var (
	codeTag   = "course_code"
	codeText  = "only letters, digits, dashes and underscores are allowed"
	codeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(codeTag, func(fl validator.FieldLevel) bool {
		return codeRegex.MatchString(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, codeTag, codeText)
}
