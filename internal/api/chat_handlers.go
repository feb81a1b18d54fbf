package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mdnsystems/OmniCare-sub005/internal/chat"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

const maxChatPage = 100

func (h *Handler) chatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyContent), errors.Is(err, chat.ErrContentTooLong), errors.Is(err, chat.ErrSelfMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrRecipientNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.storeError(w, r, err)
	}
}

type ConversationOutput struct {
	PeerID      string `json:"peer_id"`
	PeerName    string `json:"peer_name"`
	LastContent string `json:"last_content"`
	LastAt      string `json:"last_at"`
	Unread      int64  `json:"unread"`
	Online      bool   `json:"online"`
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	clinicID := tenant.ID(r.Context())
	list, err := repo.ChatConversations(r.Context(), h.DB, clinicID, currentUserID(r))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	online := map[uuid.UUID]bool{}
	if h.Chat != nil && h.Chat.Hub != nil {
		for _, id := range h.Chat.Hub.Online(clinicID) {
			online[id] = true
		}
	}
	out := make([]ConversationOutput, 0, len(list))
	for _, c := range list {
		out = append(out, ConversationOutput{
			PeerID:      c.PeerID.String(),
			PeerName:    c.PeerName,
			LastContent: c.LastContent,
			LastAt:      c.LastAt.Format(timeLayout),
			Unread:      c.Unread,
			Online:      online[c.PeerID],
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": out})
}

type chatMessagesQuery struct {
	With   uuid.UUID `schema:"with"`
	Before time.Time `schema:"before"`
	Limit  int       `schema:"limit"`
}

// ListChatMessages: ?with=<userID> conversa direta; sem with, sala da clínica.
// ?before= pagina para trás. Abrir a conversa direta marca as mensagens recebidas como lidas.
func (h *Handler) ListChatMessages(w http.ResponseWriter, r *http.Request) {
	var q chatMessagesQuery
	if err := decodeQuery(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query")
		return
	}
	if q.Limit <= 0 || q.Limit > maxChatPage {
		q.Limit = 50
	}
	clinicID, userID := tenant.ID(r.Context()), currentUserID(r)
	peer := uuidPtr(q.With)
	list, err := repo.ChatMessagesWith(r.Context(), h.DB, clinicID, userID, peer, timePtr(q.Before), q.Limit)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if peer != nil {
		if _, err := repo.MarkConversationRead(r.Context(), h.DB, clinicID, userID, *peer); err != nil {
			h.Log.Error().Err(err).Msg("mark conversation read")
		}
	}
	out := make([]chat.Message, 0, len(list))
	for _, m := range list {
		out = append(out, chat.MessageFrom(m))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": out})
}

type SendChatMessageRequest struct {
	To      *uuid.UUID `json:"to"`
	Content string     `json:"content"`
}

// SendChatMessage é o equivalente REST do frame "message" do socket.
func (h *Handler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	var req SendChatMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.To != nil && *req.To == uuid.Nil {
		req.To = nil
	}
	m, err := h.Chat.Send(r.Context(), tenant.ID(r.Context()), currentUserID(r), req.To, req.Content)
	if err != nil {
		h.chatError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) MarkChatMessageRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Chat.MarkRead(r.Context(), tenant.ID(r.Context()), currentUserID(r), id); err != nil {
		h.chatError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type UnreadOutput struct {
	Total    int64            `json:"total"`
	BySender map[string]int64 `json:"by_sender"`
}

func (h *Handler) ChatUnread(w http.ResponseWriter, r *http.Request) {
	rows, err := repo.UnreadChatCounts(r.Context(), h.DB, tenant.ID(r.Context()), currentUserID(r))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := UnreadOutput{BySender: map[string]int64{}}
	for _, row := range rows {
		out.BySender[row.SenderID.String()] = row.N
		out.Total += row.N
	}
	writeJSON(w, http.StatusOK, out)
}
