package usage

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mgallardo/edustack-backend/api/responses"
	"github.com/mgallardo/edustack-backend/api/validators"
	usagesvc "github.com/mgallardo/edustack-backend/internal/usage"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/logger"
	"github.com/mgallardo/edustack-backend/pkg/pagination"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// UsageService describes the ledger methods used by the HTTP controllers.
type UsageService interface {
	Record(ctx context.Context, input usagesvc.RecordInput) (*models.UsageEvent, error)
	SumForScope(ctx context.Context, scope types.Scope, metric string, since *time.Time) (int64, error)
	ListEvents(ctx context.Context, params usagesvc.ListEventsQuery) ([]models.UsageEvent, *pagination.Cursor, error)
}

type usageEventResponse struct {
	ID            string      `json:"id"`
	Scope         types.Scope `json:"scope"`
	Metric        string      `json:"metric"`
	Quantity      int64       `json:"quantity"`
	Environment   string      `json:"environment"`
	OccurredAt    string      `json:"occurred_at"`
	ApproxCostUSD *string     `json:"approx_cost_usd,omitempty"`
	ProviderCode  *string     `json:"provider_code,omitempty"`
	CreatedAt     string      `json:"created_at"`
}

type usageListResponse struct {
	Events     []usageEventResponse `json:"events"`
	NextCursor *string              `json:"next_cursor,omitempty"`
}

type usageSumResponse struct {
	Scope  types.Scope `json:"scope"`
	Metric string      `json:"metric"`
	Total  int64       `json:"total"`
}

func eventToResponse(event *models.UsageEvent) usageEventResponse {
	resp := usageEventResponse{
		ID:           event.ID.String(),
		Scope:        types.Scope{Type: event.ScopeType, ID: event.ScopeID},
		Metric:       event.Metric,
		Quantity:     event.Quantity,
		Environment:  string(event.Environment),
		OccurredAt:   event.OccurredAt.UTC().Format(time.RFC3339),
		ProviderCode: event.ProviderCode,
		CreatedAt:    event.CreatedAt.UTC().Format(time.RFC3339),
	}
	if event.ApproxCostUSD != nil {
		v := event.ApproxCostUSD.String()
		resp.ApproxCostUSD = &v
	}
	return resp
}

// Record appends one usage event to the ledger.
func Record(svc UsageService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		var payload usagesvc.RecordInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		event, err := svc.Record(ctx, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, eventToResponse(event))
	}
}

// List serves a cursor-paginated page of a scope's events.
func List(svc UsageService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		scope, err := validators.ParseScopeQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		query := usagesvc.ListEventsQuery{
			Scope:  scope,
			Limit:  limit,
			Cursor: cursor,
		}
		if metric := strings.TrimSpace(r.URL.Query().Get("metric")); metric != "" {
			query.Metric = &metric
		}

		events, next, err := svc.ListEvents(ctx, query)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := usageListResponse{Events: make([]usageEventResponse, 0, len(events))}
		for i := range events {
			resp.Events = append(resp.Events, eventToResponse(&events[i]))
		}
		if next != nil {
			encoded := next.Encode()
			resp.NextCursor = &encoded
		}

		responses.WriteSuccess(w, resp)
	}
}

// Sum aggregates a scope's metric total since an optional RFC 3339 instant.
func Sum(svc UsageService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		scope, err := validators.ParseScopeQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		metric := strings.TrimSpace(r.URL.Query().Get("metric"))
		if metric == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "metric is required"))
			return
		}

		var since *time.Time
		if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "since must be an RFC 3339 timestamp"))
				return
			}
			since = &parsed
		}

		total, err := svc.SumForScope(ctx, scope, metric, since)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, usageSumResponse{Scope: scope, Metric: metric, Total: total})
	}
}
