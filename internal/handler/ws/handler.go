package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatHandler "github.com/sahaay-health/sahaay/backend/internal/handler/chat"
	chatservice "github.com/sahaay-health/sahaay/backend/internal/service/chat"
	"github.com/sahaay-health/sahaay/backend/pkg/log"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
	queueSize  = 16

	// base64 inflates the image by 4/3, plus room for the envelope
	maxFrameBytes = chatHandler.MaxImageBytes*4/3 + 64<<10
)

// Handler WebSocket 会话处理器，一个连接对应一个会话
type Handler struct {
	chatSvc    *chatservice.Service
	upgrader   websocket.Upgrader
	pongWait   time.Duration
	pingPeriod time.Duration
}

// New 创建WebSocket处理器
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

// UploadMessage 图片上传消息，image 为 base64 编码
type UploadMessage struct {
	Filename string `json:"filename"`
	Image    []byte `json:"image"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	view, err := h.chatSvc.View(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorw("websocket upgrade failed", "session", sessionID, "error", err)
		return
	}
	defer conn.Close()

	log.Infow("websocket connected", "session", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	go pingLoop(ctx, conn, h.pingPeriod)

	h.send(conn, sessionID, "view", view)

	// 读循环只负责收包和处理 pong，生成回复可能很慢，放到单独的 goroutine 里按顺序执行
	inbound := make(chan inboundMessage, queueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range inbound {
			if ctx.Err() != nil {
				continue
			}
			h.handleMessage(ctx, conn, sessionID, &msg)
		}
	}()
	defer func() {
		close(inbound)
		cancel()
		<-done
	}()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnw("websocket read error", "session", sessionID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))

		select {
		case inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, sessionID string, msg *inboundMessage) {
	var (
		view chatservice.View
		err  error
	)

	switch msg.Type {
	case "message":
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			h.sendError(conn, sessionID, "invalid message payload")
			return
		}
		view, err = h.chatSvc.Submit(ctx, sessionID, text.Text)
	case "upload":
		var upload UploadMessage
		if err := json.Unmarshal(msg.Data, &upload); err != nil {
			h.sendError(conn, sessionID, "invalid upload payload")
			return
		}
		if len(upload.Image) == 0 || len(upload.Image) > chatHandler.MaxImageBytes {
			h.sendError(conn, sessionID, "image must be between 1 byte and 10 MiB")
			return
		}
		view, err = h.chatSvc.Upload(ctx, sessionID, upload.Filename, upload.Image)
	default:
		h.sendError(conn, sessionID, "unsupported message type: "+msg.Type)
		return
	}

	if err != nil {
		h.sendError(conn, sessionID, err.Error())
		return
	}
	h.send(conn, sessionID, "view", view)
}

func (h *Handler) send(conn *websocket.Conn, sessionID, kind string, data interface{}) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		log.Warnw("websocket write failed", "session", sessionID, "type", kind, "error", err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, sessionID, message string) {
	h.send(conn, sessionID, "error", map[string]string{"message": message})
}

// pingLoop uses WriteControl, which may run concurrently with the worker goroutine's writes.
func pingLoop(ctx context.Context, conn *websocket.Conn, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
