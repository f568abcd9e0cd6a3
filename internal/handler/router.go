package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sahaay-health/sahaay/backend/internal/handler/chat"
	"github.com/sahaay-health/sahaay/backend/internal/handler/knowledge"
	"github.com/sahaay-health/sahaay/backend/internal/handler/stream"
	"github.com/sahaay-health/sahaay/backend/internal/handler/ws"
	middlewarePkg "github.com/sahaay-health/sahaay/backend/internal/middleware"
	knowledgeModel "github.com/sahaay-health/sahaay/backend/internal/model/knowledge"
	chatService "github.com/sahaay-health/sahaay/backend/internal/service/chat"
	"github.com/sahaay-health/sahaay/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(topics knowledgeModel.Store, chatSvc *chatService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		knowledge.New(topics).RegisterRoutes(api)
		chat.New(chatSvc).RegisterRoutes(api)
		stream.New(chatSvc).RegisterRoutes(api)
		ws.New(chatSvc).RegisterRoutes(api)
	})

	return r
}
