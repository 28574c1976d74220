package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/notify"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-repositories"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PrincipalFields are the user-supplied fields of a new principal.
// Password is optional for administratively created accounts; a temporary
// one is generated and mailed when it is empty.
type PrincipalFields struct {
	Email        string
	DisplayName  string
	PhoneNumber  *string
	DocumentID   string
	DocumentType models.DocumentType
	Password     string
}

// principalFactory validates and persists new principals and prepares the
// confirmation email. Sending it is left to the caller.
type principalFactory struct {
	principals repositories.PrincipalRepository
	phone      PhoneValidator
	appURL     string
}

func newPrincipalFactory(d Deps) *principalFactory {
	return &principalFactory{principals: d.Principals, phone: d.Phone, appURL: d.AppURL}
}

// normalize validates fields in place. Field problems are ValidationErrors;
// an email or document already in use is an AssignmentConflict.
func (f *principalFactory) normalize(ctx context.Context, fields *PrincipalFields) error {
	fields.Email = utils.NormalizeEmail(fields.Email)
	fields.DisplayName = strings.TrimSpace(fields.DisplayName)
	fields.DocumentID = utils.NormalizeDocumentID(fields.DocumentID)

	if !utils.IsValidEmail(fields.Email) {
		return utils.NewValidation("", "Invalid email address")
	}
	if fields.DisplayName == "" {
		return utils.NewValidation("", "Name is required")
	}
	if !utils.ValidateDocument(fields.DocumentType, fields.DocumentID) {
		return utils.NewValidation("", fmt.Sprintf("Invalid %s document number", fields.DocumentType))
	}
	if fields.PhoneNumber != nil {
		number := strings.TrimSpace(*fields.PhoneNumber)
		if number == "" {
			fields.PhoneNumber = nil
		} else {
			fields.PhoneNumber = &number
			if err := f.checkPhone(ctx, number); err != nil {
				return err
			}
		}
	}
	if fields.Password != "" && len(fields.Password) < utils.MinPasswordLength {
		return utils.NewValidation("", fmt.Sprintf("Password must be at least %d characters", utils.MinPasswordLength))
	}

	existing, err := f.principals.FindByEmail(ctx, fields.Email)
	if err != nil {
		return utils.NewInternal("Failed to check email", err)
	}
	if existing != nil {
		return utils.NewAssignmentConflict(utils.ErrCodeDuplicateIdentity, "Email is already registered")
	}
	existing, err = f.principals.FindByDocumentID(ctx, fields.DocumentID)
	if err != nil {
		return utils.NewInternal("Failed to check document", err)
	}
	if existing != nil {
		return utils.NewAssignmentConflict(utils.ErrCodeDuplicateDocument, "Document number is already registered")
	}
	return nil
}

func (f *principalFactory) checkPhone(ctx context.Context, number string) error {
	if f.phone == nil {
		if !utils.IsE164(number) {
			return utils.NewValidation("", "Invalid phone number")
		}
		return nil
	}
	ok, err := f.phone(ctx, number)
	if err != nil {
		// Lookup outages must not block account creation.
		utils.Logger.WithError(err).Warn("Phone lookup failed; accepting syntactically valid number")
		if utils.IsE164(number) {
			return nil
		}
	}
	if !ok {
		return utils.NewValidation("", "Invalid phone number")
	}
	return nil
}

// create persists p with the normalized fields and returns the principal as
// stored together with the confirmation email to send after the write.
func (f *principalFactory) create(ctx context.Context, p *models.Principal, fields PrincipalFields) (*models.Principal, notify.Message, error) {
	p.Email = fields.Email
	p.DisplayName = fields.DisplayName
	p.PhoneNumber = fields.PhoneNumber
	p.DocumentID = fields.DocumentID
	p.DocumentType = fields.DocumentType

	password := fields.Password
	generated := password == ""
	if generated {
		password = utils.TemporaryPassword()
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, notify.Message{}, utils.NewInternal("Failed to hash password", err)
	}

	if err := f.principals.CreatePrincipal(ctx, p, hash); err != nil {
		switch {
		case repositories.IsUniqueViolation(err, repositories.ConstraintPrincipalEmail):
			return nil, notify.Message{}, utils.NewAssignmentConflict(utils.ErrCodeDuplicateIdentity, "Email is already registered")
		case repositories.IsUniqueViolation(err, repositories.ConstraintPrincipalDocument):
			return nil, notify.Message{}, utils.NewAssignmentConflict(utils.ErrCodeDuplicateDocument, "Document number is already registered")
		}
		return nil, notify.Message{}, utils.NewInternal("Failed to create user", err)
	}

	created, err := f.principals.GetByID(ctx, p.ID)
	if err != nil || created == nil {
		created = p
	}

	msg := notify.Message{
		To:      created.Email,
		Subject: fmt.Sprintf("Welcome to %s", utils.OrganizationName),
	}
	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\nAn account was created for you.", created.DisplayName)
	if generated {
		fmt.Fprintf(&body, " Your temporary password is %s. Please change it after signing in.", password)
	}
	if link, err := f.confirmationLink(ctx, created.ID); err != nil {
		utils.Logger.WithError(err).WithFields(logrus.Fields{"principal_id": created.ID}).
			Error("Failed to issue email confirmation token")
	} else {
		fmt.Fprintf(&body, "\n\nConfirm your email: %s", link)
	}
	msg.Body = body.String()
	return created, msg, nil
}

// confirmationLink stores a fresh token hash and returns the link carrying
// the raw token.
func (f *principalFactory) confirmationLink(ctx context.Context, id uuid.UUID) (string, error) {
	raw, err := utils.RandomToken(utils.ConfirmationTokenBytes)
	if err != nil {
		return "", err
	}
	if err := f.principals.SetEmailConfirmationToken(ctx, id, utils.HashToken(raw)); err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("principal_id", id.String())
	q.Set("token", raw)
	return strings.TrimRight(f.appURL, "/") + "/confirm-email?" + q.Encode(), nil
}
