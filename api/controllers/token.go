package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/scraplinehq/scrapline-backend/api/responses"
	"github.com/scraplinehq/scrapline-backend/api/validators"
	pkgauth "github.com/scraplinehq/scrapline-backend/pkg/auth"
	"github.com/scraplinehq/scrapline-backend/pkg/config"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	pkgerrors "github.com/scraplinehq/scrapline-backend/pkg/errors"
	"github.com/scraplinehq/scrapline-backend/pkg/logger"
)

type mintTokenRequest struct {
	SubjectID uuid.UUID  `json:"subject_id" validate:"required"`
	Kind      string     `json:"kind" validate:"required,oneof=collector crew"`
	CrewID    *uuid.UUID `json:"crew_id,omitempty"`
}

// MintDevToken issues an access token without credentials. Routed only in
// non-production environments for local clients and integration tests.
func MintDevToken(cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body mintTokenRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token, err := pkgauth.MintAccessToken(cfg, time.Now(), pkgauth.AccessTokenPayload{
			SubjectID: body.SubjectID,
			Kind:      enums.ActorKind(body.Kind),
			CrewID:    body.CrewID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "mint token"))
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"access_token": token,
			"token_type":   "Bearer",
		})
	}
}
