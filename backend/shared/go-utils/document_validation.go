package utils

import (
	"regexp"
	"strings"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
)

var (
	ccNumericRegex = regexp.MustCompile(`^\d{8}$`)
	ccFullRegex    = regexp.MustCompile(`^\d{8}\s?\d[A-Z]{2}\d$`)
	nifRegex       = regexp.MustCompile(`^\d{9}$`)
	passportRegex  = regexp.MustCompile(`^[A-Z0-9]{6,9}$`)
)

// NormalizeDocumentID trims and upper-cases an identity document number.
func NormalizeDocumentID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ValidateDocument checks a document number against the rules of its type.
// The id is expected to be normalized already.
func ValidateDocument(docType models.DocumentType, id string) bool {
	switch docType {
	case models.DocumentTypeCitizenCard:
		return ccNumericRegex.MatchString(id) || ccFullRegex.MatchString(id)
	case models.DocumentTypeTaxNumber:
		return validNIF(id)
	case models.DocumentTypePassport:
		return passportRegex.MatchString(id)
	default:
		return false
	}
}

// validNIF applies the mod-11 check digit used by Portuguese tax numbers.
func validNIF(id string) bool {
	if !nifRegex.MatchString(id) {
		return false
	}
	sum := 0
	for i := 0; i < 8; i++ {
		sum += int(id[i]-'0') * (9 - i)
	}
	check := 11 - sum%11
	if check >= 10 {
		check = 0
	}
	return int(id[8]-'0') == check
}
