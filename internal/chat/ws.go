package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// WSHandler faz o upgrade de /api/chat/ws. Autenticação e tenant já foram
// resolvidos pelos middlewares (token via ?token= no handshake).
type WSHandler struct {
	Hub      *Hub
	Service  *Service
	Log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler aceita apenas as origens de CORS_ORIGINS; "*" libera todas.
func NewWSHandler(hub *Hub, svc *Service, origins []string, log zerolog.Logger) *WSHandler {
	allowed := map[string]bool{}
	for _, o := range origins {
		allowed[o] = true
	}
	return &WSHandler{
		Hub:     hub,
		Service: svc,
		Log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	info, ok := tenant.FromContext(r.Context())
	userID, err := uuid.Parse(auth.UserIDFrom(r.Context()))
	if !ok || err != nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade já respondeu ao cliente
		h.Log.Debug().Err(err).Msg("websocket upgrade")
		return
	}
	c := NewClient(userID, info.ID, 256)
	h.Hub.Register(c)
	h.Log.Debug().Str("client_id", c.ID).Str("user_id", userID.String()).Str("tenant_id", info.ID.String()).Msg("chat connected")

	ready, _ := json.Marshal(Outbound{Type: FrameReady})
	c.Send <- ready

	go h.writePump(c, conn)
	h.readPump(c, conn)
}

func (h *WSHandler) readPump(c *Client, conn *websocket.Conn) {
	defer func() {
		h.Hub.Unregister(c)
		_ = conn.Close()
		h.Log.Debug().Str("client_id", c.ID).Msg("chat disconnected")
	}()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Log.Debug().Err(err).Str("client_id", c.ID).Msg("chat read")
			}
			return
		}
		var in Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			h.reply(c, Outbound{Type: FrameError, Error: "invalid frame"})
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err = h.Service.Handle(ctx, c, in)
		cancel()
		if err != nil {
			h.reply(c, Outbound{Type: FrameError, Error: frameError(err)})
			if !isClientError(err) {
				h.Log.Error().Err(err).Str("client_id", c.ID).Str("type", in.Type).Msg("chat frame")
			}
		}
	}
}

func (h *WSHandler) writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply envia só para a conexão que originou o frame; descarta se o buffer estiver cheio.
// Só é chamado pelo readPump, antes do Unregister que fecha Send.
func (h *WSHandler) reply(c *Client, out Outbound) {
	data, err := json.Marshal(out)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func isClientError(err error) bool {
	return errors.Is(err, ErrEmptyContent) || errors.Is(err, ErrContentTooLong) ||
		errors.Is(err, ErrRecipientNotFound) || errors.Is(err, ErrSelfMessage) ||
		errors.Is(err, ErrUnknownFrame) || errors.Is(err, repo.ErrNotFound)
}

func frameError(err error) string {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return "message not found"
	case isClientError(err):
		return err.Error()
	default:
		return "internal"
	}
}
