package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/dtos"
	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/services"
	"github.com/condoprime/mono-repo/backend/shared/go-middleware"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// decodeAndValidate writes the 400 itself and reports false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return false
	}
	if err := v.Struct(dst); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", validationDetails(err), err)
		return false
	}
	return true
}

func validationDetails(err error) map[string]string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// pathID parses the {id} route variable.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Invalid id in path", nil, err)
		return uuid.Nil, false
	}
	return id, true
}

// loadActor re-reads the authenticated principal behind the request.
func loadActor(w http.ResponseWriter, r *http.Request, authz *services.AuthzService) (*models.Principal, bool) {
	actor, err := authz.LoadActor(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		utils.HandleAppError(w, err)
		return nil, false
	}
	return actor, true
}

func includeDeleted(r *http.Request) bool {
	return r.URL.Query().Get("include_deleted") == "true"
}

func toPrincipalFields(f dtos.PrincipalFields) services.PrincipalFields {
	return services.PrincipalFields{
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		PhoneNumber:  f.PhoneNumber,
		DocumentID:   f.DocumentID,
		DocumentType: f.DocumentType,
		Password:     f.Password,
	}
}
