package usage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	usagesvc "github.com/mgallardo/edustack-backend/internal/usage"
	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
	"github.com/mgallardo/edustack-backend/pkg/pagination"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

type stubUsageService struct {
	recorded   *usagesvc.RecordInput
	listQuery  usagesvc.ListEventsQuery
	events     []models.UsageEvent
	nextCursor *pagination.Cursor
	sumScope   types.Scope
	sumMetric  string
	sumSince   *time.Time
	total      int64
}

func (s *stubUsageService) Record(ctx context.Context, input usagesvc.RecordInput) (*models.UsageEvent, error) {
	s.recorded = &input
	return &models.UsageEvent{
		ID:          uuid.New(),
		ScopeType:   input.Scope.Type,
		ScopeID:     input.Scope.ID,
		Metric:      input.Metric,
		Quantity:    input.Quantity,
		Environment: enums.EnvironmentProduction,
		OccurredAt:  time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (s *stubUsageService) SumForScope(ctx context.Context, scope types.Scope, metric string, since *time.Time) (int64, error) {
	s.sumScope = scope
	s.sumMetric = metric
	s.sumSince = since
	return s.total, nil
}

func (s *stubUsageService) ListEvents(ctx context.Context, params usagesvc.ListEventsQuery) ([]models.UsageEvent, *pagination.Cursor, error) {
	s.listQuery = params
	return s.events, s.nextCursor, nil
}

func TestRecordReturns201(t *testing.T) {
	service := &stubUsageService{}
	scopeID := uuid.New()
	payload := `{
		"scope":{"scope_type":"user","scope_id":"` + scopeID.String() + `"},
		"metric":"ai_requests_per_day",
		"quantity":3
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/usage/events", strings.NewReader(payload))
	resp := httptest.NewRecorder()
	Record(service, nil)(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.recorded == nil {
		t.Fatal("expected record to reach the service")
	}
	if service.recorded.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", service.recorded.Quantity)
	}
	if service.recorded.Scope.ID != scopeID {
		t.Fatalf("expected scope id %s, got %s", scopeID, service.recorded.Scope.ID)
	}
}

func TestListParsesLimitAndMetric(t *testing.T) {
	service := &stubUsageService{}
	scopeID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage/events?scope_type=user&scope_id="+scopeID.String()+"&metric=storage_mb&limit=10", nil)
	resp := httptest.NewRecorder()
	List(service, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.listQuery.Limit != 10 {
		t.Fatalf("expected limit 10, got %d", service.listQuery.Limit)
	}
	if service.listQuery.Metric == nil || *service.listQuery.Metric != "storage_mb" {
		t.Fatalf("expected storage_mb metric filter, got %v", service.listQuery.Metric)
	}
}

func TestListEncodesNextCursor(t *testing.T) {
	cursor := pagination.Cursor{
		CreatedAt: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
		ID:        uuid.New(),
	}
	service := &stubUsageService{nextCursor: &cursor}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage/events?scope_type=user&scope_id="+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	List(service, nil)(resp, req)

	var envelope struct {
		Data usageListResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.NextCursor == nil {
		t.Fatal("expected next_cursor in response")
	}
	decoded, err := pagination.ParseCursor(*envelope.Data.NextCursor)
	if err != nil {
		t.Fatalf("parse returned cursor: %v", err)
	}
	if decoded.ID != cursor.ID {
		t.Fatalf("cursor id round trip mismatch: %s != %s", decoded.ID, cursor.ID)
	}
}

func TestListRejectsOversizedLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage/events?scope_type=user&scope_id="+uuid.NewString()+"&limit=5000", nil)
	resp := httptest.NewRecorder()
	List(&stubUsageService{}, nil)(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", resp.Code)
	}
}

func TestSumParsesSince(t *testing.T) {
	service := &stubUsageService{total: 42}
	scopeID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage/sum?scope_type=family&scope_id="+scopeID.String()+"&metric=ai_requests_per_day&since=2026-02-10T00:00:00Z", nil)
	resp := httptest.NewRecorder()
	Sum(service, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.sumMetric != "ai_requests_per_day" {
		t.Fatalf("unexpected metric %q", service.sumMetric)
	}
	if service.sumSince == nil || !service.sumSince.Equal(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected since %v", service.sumSince)
	}

	var envelope struct {
		Data usageSumResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Total != 42 {
		t.Fatalf("expected total 42, got %d", envelope.Data.Total)
	}
}

func TestSumRequiresMetric(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage/sum?scope_type=user&scope_id="+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	Sum(&stubUsageService{}, nil)(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without metric, got %d", resp.Code)
	}
}
