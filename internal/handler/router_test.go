package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sahaay-health/sahaay/backend/internal/model/knowledge"
	chatService "github.com/sahaay-health/sahaay/backend/internal/service/chat"
	"github.com/sahaay-health/sahaay/backend/internal/service/dispatch"
)

func newTestRouter() http.Handler {
	topics := knowledge.NewMemoryStore(knowledge.Seed())
	chatSvc := chatService.NewService(dispatch.New(topics, nil), nil, nil)
	return NewRouter(topics, chatSvc)
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	r := newTestRouter()

	for _, path := range []string{"/healthz", "/metrics", "/api/topics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestRouterPreflight(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}
