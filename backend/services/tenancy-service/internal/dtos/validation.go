package dtos

import (
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that also checks identity document
// numbers against their declared type.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validatePrincipalFields, PrincipalFields{})
	return v
}

func validatePrincipalFields(sl validator.StructLevel) {
	f := sl.Current().Interface().(PrincipalFields)
	// Missing values are reported by the required tags.
	if f.DocumentID == "" || f.DocumentType == "" {
		return
	}
	if !utils.ValidateDocument(f.DocumentType, utils.NormalizeDocumentID(f.DocumentID)) {
		sl.ReportError(f.DocumentID, "DocumentID", "document_id", "document", string(f.DocumentType))
	}
}
