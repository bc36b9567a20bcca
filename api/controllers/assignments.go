package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scraplinehq/scrapline-backend/api/middleware"
	"github.com/scraplinehq/scrapline-backend/api/responses"
	"github.com/scraplinehq/scrapline-backend/api/validators"
	"github.com/scraplinehq/scrapline-backend/internal/assignments"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	pkgerrors "github.com/scraplinehq/scrapline-backend/pkg/errors"
	"github.com/scraplinehq/scrapline-backend/pkg/logger"
	"github.com/scraplinehq/scrapline-backend/pkg/pagination"
)

// actorFromContext rebuilds the lifecycle actor from the authenticated
// identity.
func actorFromContext(r *http.Request) (assignments.Actor, error) {
	raw := middleware.ActorIDFromContext(r.Context())
	if raw == "" {
		return assignments.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return assignments.Actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor id")
	}

	kind := enums.ActorKind(middleware.ActorKindFromContext(r.Context()))
	if !kind.IsValid() {
		return assignments.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown actor kind")
	}
	return assignments.Actor{Kind: kind, ID: id}, nil
}

func parseAssignmentID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "assignmentId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid assignment id")
	}
	return id, nil
}

func StartAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignmentID, err := parseAssignmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Start(r.Context(), assignments.StartInput{
			OrderID:      orderID,
			AssignmentID: assignmentID,
			Actor:        actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

type completeAssignmentRequest struct {
	Notes  *string  `json:"notes,omitempty"`
	Photos []string `json:"photos,omitempty" validate:"omitempty,dive,min=1"`
}

func CompleteAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignmentID, err := parseAssignmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body completeAssignmentRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		detail, err := svc.Complete(r.Context(), assignments.CompleteInput{
			OrderID:      orderID,
			AssignmentID: assignmentID,
			Actor:        actor,
			Notes:        body.Notes,
			Photos:       body.Photos,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func ListCollectorAssignments(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collectorID, err := collectorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByCollector(r.Context(), collectorID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ListCrewAssignments serves a crew device's queue. Collectors inside a crew
// reach it too through the crew id carried on their token.
func ListCrewAssignments(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := middleware.CrewIDFromContext(r.Context())
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "crew context missing"))
			return
		}
		crewID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid crew id"))
			return
		}

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByCrew(r.Context(), crewID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func listParams(r *http.Request) (pagination.Params, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, 1<<20)
	if err != nil {
		return pagination.Params{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Page: page, Limit: limit}, nil
}
