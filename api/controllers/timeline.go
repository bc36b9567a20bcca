package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/scraplinehq/scrapline-backend/api/responses"
	"github.com/scraplinehq/scrapline-backend/pkg/db/models"
	pkgerrors "github.com/scraplinehq/scrapline-backend/pkg/errors"
	"github.com/scraplinehq/scrapline-backend/pkg/logger"
)

// TimelineLister reads an order's audit trail.
type TimelineLister interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error)
}

func OrderTimeline(lister TimelineLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if lister == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "timeline unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := lister.ListByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": entries})
	}
}
