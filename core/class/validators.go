package class

import (
	"regexp"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

var (
	academicYearTag   = "academic_year"
	academicYearText  = "academic year must be formatted as YYYY or YYYY-YYYY"
	academicYearRegex = regexp.MustCompile(`^(\d{4})(?:-(\d{4}))?$`)
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(academicYearTag, academicYearValidation)
	core.RegisterCustomTranslation(validate, translator, academicYearTag, academicYearText)
}

// academicYearValidation accepts "2024" and "2024-2025" (consecutive years).
func academicYearValidation(fl validator.FieldLevel) bool {
	m := academicYearRegex.FindStringSubmatch(fl.Field().String())
	if m == nil {
		return false
	}
	if m[2] == "" {
		return true
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}
