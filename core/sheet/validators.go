package sheet

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/evalix/core"
)

var (
	scoreRangeText = fmt.Sprintf("score must be between %d and %d", MinScore, MaxScore)

	studentIDRequiredTag  = "studentid_required"
	studentIDRequiredText = "studentId is required when automatic ids are disabled"
)

// InitValidators registers the sheet validations. core.InitValidators must be called first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(payloadStructValidation, Payload{})
	core.RegisterCustomTranslation(validate, translator, studentIDRequiredTag, studentIDRequiredText)

	// scores are the only numeric fields validated with gte/lte
	core.RegisterCustomTranslation(validate, translator, "gte", scoreRangeText, true)
	core.RegisterCustomTranslation(validate, translator, "lte", scoreRangeText, true)
}

func payloadStructValidation(sl validator.StructLevel) {
	p := sl.Current().Interface().(Payload)
	if p.AutoIDEnabled == nil || *p.AutoIDEnabled {
		return
	}
	for i, r := range p.Rows {
		if core.CleanString(r.StudentID) == "" {
			name := fmt.Sprintf("rows[%d].studentId", i)
			sl.ReportError(r.StudentID, name, name, studentIDRequiredTag, "")
		}
	}
}
