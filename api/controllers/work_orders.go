package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scraplinehq/scrapline-backend/api/middleware"
	"github.com/scraplinehq/scrapline-backend/api/responses"
	"github.com/scraplinehq/scrapline-backend/api/validators"
	"github.com/scraplinehq/scrapline-backend/internal/workqueue"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	pkgerrors "github.com/scraplinehq/scrapline-backend/pkg/errors"
	"github.com/scraplinehq/scrapline-backend/pkg/logger"
	"github.com/scraplinehq/scrapline-backend/pkg/pagination"
)

// collectorFromContext resolves the authenticated collector id.
func collectorFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.ActorIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor id")
	}
	return id, nil
}

func parseLocation(r *http.Request) (*workqueue.Location, error) {
	lat, err := validators.ParseQueryFloat(r, "latitude")
	if err != nil {
		return nil, err
	}
	lng, err := validators.ParseQueryFloat(r, "longitude")
	if err != nil {
		return nil, err
	}
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "latitude and longitude must be provided together")
	}
	return &workqueue.Location{Latitude: *lat, Longitude: *lng}, nil
}

func parseWorkOrderFilters(r *http.Request) (workqueue.Filters, error) {
	var filters workqueue.Filters

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			filters.Statuses = append(filters.Statuses, enums.OrderStatus(part))
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("payment_status")); raw != "" {
		status := enums.PaymentStatus(raw)
		if !status.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status").WithDetails(map[string]any{"field": "payment_status"})
		}
		filters.PaymentStatus = &status
	}

	var err error
	if filters.CreatedFrom, err = validators.ParseQueryTime(r, "created_from"); err != nil {
		return filters, err
	}
	if filters.CreatedTo, err = validators.ParseQueryTime(r, "created_to"); err != nil {
		return filters, err
	}
	if filters.PickupFrom, err = validators.ParseQueryTime(r, "pickup_from"); err != nil {
		return filters, err
	}
	if filters.PickupTo, err = validators.ParseQueryTime(r, "pickup_to"); err != nil {
		return filters, err
	}
	if filters.YardID, err = validators.ParseQueryUUID(r, "yard_id"); err != nil {
		return filters, err
	}
	if filters.HasPhotos, err = validators.ParseQueryBool(r, "has_photos"); err != nil {
		return filters, err
	}
	if filters.PriceMin, err = validators.ParseQueryDecimal(r, "price_min"); err != nil {
		return filters, err
	}
	if filters.PriceMax, err = validators.ParseQueryDecimal(r, "price_max"); err != nil {
		return filters, err
	}
	if filters.Location, err = parseLocation(r); err != nil {
		return filters, err
	}
	if filters.RadiusKm, err = validators.ParseQueryFloat(r, "radius_km"); err != nil {
		return filters, err
	}

	filters.Search = strings.TrimSpace(r.URL.Query().Get("search"))
	filters.SortBy = strings.TrimSpace(r.URL.Query().Get("sort_by"))
	if desc, err := validators.ParseQueryBool(r, "sort_desc"); err != nil {
		return filters, err
	} else if desc != nil {
		filters.SortDesc = *desc
	}

	return filters, nil
}

func ListWorkOrders(svc workqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collectorID, err := collectorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := parseWorkOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1<<20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListWorkOrders(r.Context(), collectorID, filters, pagination.Params{Page: page, Limit: limit})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetWorkOrder(svc workqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collectorID, err := collectorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		loc, err := parseLocation(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetWorkOrder(r.Context(), collectorID, orderID, loc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type updateStatusRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
	Notes  *string           `json:"notes,omitempty"`
	Photos []string          `json:"photos,omitempty" validate:"omitempty,dive,min=1"`
}

func UpdateWorkOrderStatus(svc workqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collectorID, err := collectorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateWorkOrderStatus(r.Context(), workqueue.UpdateStatusInput{
			CollectorID: collectorID,
			OrderID:     orderID,
			NextStatus:  body.Status,
			Notes:       body.Notes,
			Photos:      body.Photos,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func CollectorStats(svc workqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collectorID, err := collectorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stats, err := svc.CollectorStats(r.Context(), collectorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}
