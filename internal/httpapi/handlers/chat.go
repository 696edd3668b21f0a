package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chatbot/internal/chat"
	"github.com/suPer8Hu/chatbot/internal/common"
	"github.com/suPer8Hu/chatbot/internal/httpapi/middleware"
)

func ok(c *gin.Context, data any) {
	common.OK(c, data)
}

func fail(c *gin.Context, httpStatus int, code int, msg string) {
	common.Fail(c, httpStatus, code, msg)
}

func (h *Handler) Ping(c *gin.Context) {
	ok(c, gin.H{"pong": true})
}

// SendChat handles POST /chat. A successful turn answers with the
// conversation itself, {"session_id", "messages"}; failures use the error
// envelope. Invalid input is rejected with 422 before any store or model
// call, and the body never says which field was wrong.
func (h *Handler) SendChat(c *gin.Context) {
	log := h.Logger.With("request_id", middleware.RequestIDFrom(c))

	var ev chat.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		log.Warn("invalid chat request", "error", err)
		fail(c, http.StatusUnprocessableEntity, 42201, "invalid data")
		return
	}

	ctx := c.Request.Context()
	conv, err := h.ChatSvc.Chat(ctx, h.SystemPrompt, ev)
	if conv != nil {
		h.publishTurn(ctx, chat.NewTurnEvent(conv, len(ev.Messages)+1, err))
	}
	if err != nil {
		log.Error("chat turn failed", "session_id", ev.SessionID, "kind", chat.ErrorKind(err), "error", err)
		h.failTurn(c, err)
		return
	}

	// bare wire form so clients can post it back with the next prompt
	c.JSON(http.StatusOK, conv.ToWire())
}

// ListChatMessages handles GET /chat/sessions/:session_id/messages.
func (h *Handler) ListChatMessages(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		fail(c, http.StatusBadRequest, 10002, "session_id required")
		return
	}

	conv, err := h.History.History(c.Request.Context(), sessionID)
	if err != nil {
		h.Logger.Error("load history failed",
			"request_id", middleware.RequestIDFrom(c),
			"session_id", sessionID,
			"error", err,
		)
		h.failTurn(c, err)
		return
	}

	ok(c, conv.ToWire())
}

func (h *Handler) failTurn(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrStoreUnavailable):
		fail(c, http.StatusServiceUnavailable, 50301, "history store unavailable")
	case errors.Is(err, chat.ErrInferenceUnavailable):
		fail(c, http.StatusServiceUnavailable, 50302, "inference unavailable")
	case errors.Is(err, chat.ErrValidation):
		fail(c, http.StatusUnprocessableEntity, 42201, "invalid data")
	case errors.Is(err, chat.ErrParse):
		fail(c, http.StatusBadGateway, 50201, "malformed model reply")
	default:
		fail(c, http.StatusInternalServerError, 50000, "internal error")
	}
}

// publishTurn never affects the response.
func (h *Handler) publishTurn(ctx context.Context, ev chat.TurnEvent) {
	if h.Publisher == nil {
		return
	}
	if err := h.Publisher.PublishTurn(context.WithoutCancel(ctx), ev); err != nil {
		h.Logger.Warn("publish turn event failed", "session_id", ev.SessionID, "status", ev.Status, "error", err)
	}
}
