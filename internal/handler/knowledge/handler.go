package knowledge

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sahaay-health/sahaay/backend/internal/model/knowledge"
	"github.com/sahaay-health/sahaay/backend/pkg/utils"
)

// Handler 知识库的HTTP处理器
type Handler struct {
	topics knowledge.Store
}

// New 创建知识库处理器
func New(topics knowledge.Store) *Handler {
	return &Handler{topics: topics}
}

// TopicSummary is the listing shape of one knowledge entry.
type TopicSummary struct {
	Keyword     string `json:"keyword"`
	Description string `json:"description"`
	References  int    `json:"references"`
}

// RegisterRoutes 注册知识库相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/topics", h.handleListTopics)
}

// handleListTopics 按匹配顺序列出所有关键词
func (h *Handler) handleListTopics(w http.ResponseWriter, r *http.Request) {
	entries := h.topics.List()
	summaries := make([]TopicSummary, 0, len(entries))
	for _, entry := range entries {
		summaries = append(summaries, TopicSummary{
			Keyword:     entry.Keyword,
			Description: entry.Topic.Description,
			References:  len(entry.Topic.References),
		})
	}
	utils.RespondJSON(w, http.StatusOK, summaries)
}
