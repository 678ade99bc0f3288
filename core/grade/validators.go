package grade

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

var (
	typeTag  = "grade_type"
	typeText = "grade type must be one of exam, homework, project or other"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(typeTag, func(fl validator.FieldLevel) bool {
		return core.ContainsString(AllTypes, fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, typeTag, typeText)
}
