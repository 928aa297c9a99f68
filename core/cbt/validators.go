package cbt

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	optionTag  = "option"
	optionText = "{0} must be one of A, B, C or D"

	options = map[string]bool{"A": true, "B": true, "C": true, "D": true}
)

// InitValidators registers the cbt validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(optionTag, optionValidation)
	core.RegisterCustomTranslation(validate, translator, optionTag, optionText)
}

func optionValidation(fl validator.FieldLevel) bool {
	return options[fl.Field().String()]
}
