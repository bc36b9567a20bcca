package middleware

import (
	"net/http"
	"strings"

	"github.com/scraplinehq/scrapline-backend/api/responses"
	pkgauth "github.com/scraplinehq/scrapline-backend/pkg/auth"
	"github.com/scraplinehq/scrapline-backend/pkg/config"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	pkgerrors "github.com/scraplinehq/scrapline-backend/pkg/errors"
	"github.com/scraplinehq/scrapline-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// actor identity carried in the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if !claims.Kind.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown actor kind"))
				return
			}

			ctx := WithActor(r.Context(), claims.SubjectID.String(), string(claims.Kind))
			if claims.CrewID != nil {
				ctx = WithCrewID(ctx, claims.CrewID.String())
			} else if claims.Kind == enums.ActorKindCrew {
				ctx = WithCrewID(ctx, claims.SubjectID.String())
			}

			if logg != nil {
				fields := map[string]any{
					"actor_id":   claims.SubjectID.String(),
					"actor_kind": string(claims.Kind),
				}
				if claims.CrewID != nil {
					fields["crew_id"] = claims.CrewID.String()
				}
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
