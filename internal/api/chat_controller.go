// Package api serves the conversation over HTTP. The client holds the
// session and sends it back with every turn.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/fitcoach-bot/internal/conversation"
	apperrors "github.com/Proton-105/fitcoach-bot/internal/errors"
	"github.com/Proton-105/fitcoach-bot/internal/handoff"
	"github.com/Proton-105/fitcoach-bot/internal/plan"
	"github.com/Proton-105/fitcoach-bot/pkg/metrics"
)

const channel = handoff.ChannelHTTP

// ChatRequest is the body of POST /api/chat. Both fields are kept raw so a
// non-string message and a malformed chatState can be told apart.
type ChatRequest struct {
	Message   json.RawMessage `json:"message"`
	ChatState json.RawMessage `json:"chatState"`
}

// RestartRequest is the body of POST /api/chat/restart.
type RestartRequest struct {
	ChatState json.RawMessage `json:"chatState"`
}

// ChatResponse mirrors conversation.Reply on the wire.
type ChatResponse struct {
	Message      string                `json:"message"`
	QuickReplies []string              `json:"quickReplies,omitempty"`
	NewChatState *conversation.Session `json:"newChatState,omitempty"`
	IsMainMenu   bool                  `json:"isMainMenu,omitempty"`
	IsPlan       bool                  `json:"isPlan,omitempty"`
	PlanData     *plan.Document        `json:"planData,omitempty"`
}

// MenuResponse is the body of GET /api/menu.
type MenuResponse struct {
	Language conversation.Language     `json:"language"`
	Options  []conversation.MenuOption `json:"options"`
}

// ChatController handles the conversation endpoints.
type ChatController struct {
	engine     *conversation.Engine
	lookup     conversation.Lookup
	recorder   handoff.Recorder
	errHandler *apperrors.Handler
	log        *slog.Logger
}

// NewChatController wires the controller. recorder may be nil.
func NewChatController(
	engine *conversation.Engine,
	lookup conversation.Lookup,
	recorder handoff.Recorder,
	errHandler *apperrors.Handler,
	log *slog.Logger,
) *ChatController {
	if log == nil {
		log = slog.Default()
	}

	return &ChatController{
		engine:     engine,
		lookup:     lookup,
		recorder:   recorder,
		errHandler: errHandler,
		log:        log,
	}
}

// Chat runs one turn.
func (h *ChatController) Chat(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, conversation.LanguageUnset, apperrors.NewValidationError("invalid request body"))
		return
	}

	state := h.decodeState(ctx, req.ChatState)

	var utterance string
	if err := json.Unmarshal(req.Message, &utterance); err != nil {
		h.fail(c, state.Language, apperrors.NewValidationError("message is not a string"))
		return
	}

	reply, err := h.engine.Respond(state, utterance)
	if err != nil {
		metrics.RecordTurn(channel, "", time.Since(start))
		h.fail(c, state.Language, err)
		return
	}

	switch reply.Branch {
	case conversation.BranchHandoff:
		h.recordHandoff(c, state, utterance)
	case conversation.BranchPlan:
		metrics.RecordPlan(state.CurrentFlow)
	}
	metrics.RecordTurn(channel, reply.Branch, time.Since(start))

	c.JSON(http.StatusOK, toResponse(reply))
}

// Restart clears the active flow and returns the main-menu prompt.
func (h *ChatController) Restart(c *gin.Context) {
	start := time.Now()

	var req RestartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, conversation.LanguageUnset, apperrors.NewValidationError("invalid request body"))
			return
		}
	}

	reply := h.engine.Restart(h.decodeState(c.Request.Context(), req.ChatState))
	metrics.RecordTurn(channel, reply.Branch, time.Since(start))

	c.JSON(http.StatusOK, toResponse(reply))
}

// Menu returns the localized main-menu cards. Unknown languages fall back to English.
func (h *ChatController) Menu(c *gin.Context) {
	lang := conversation.Language(strings.ToLower(c.Query("lang")))
	if !lang.Valid() {
		lang = conversation.LanguageEnglish
	}

	c.JSON(http.StatusOK, MenuResponse{Language: lang, Options: h.engine.Menu(lang)})
}

// decodeState accepts whatever the client sent. Anything that is not a
// session object starts a fresh conversation instead of failing the turn.
func (h *ChatController) decodeState(ctx context.Context, raw json.RawMessage) conversation.Session {
	state := conversation.NewSession()
	if len(raw) == 0 || string(raw) == "null" {
		return state
	}

	if err := json.Unmarshal(raw, &state); err != nil {
		h.log.WarnContext(ctx, "discarding malformed chat state", slog.Any("error", err))
		return conversation.NewSession()
	}
	return state
}

func (h *ChatController) recordHandoff(c *gin.Context, state conversation.Session, utterance string) {
	metrics.RecordHandoff(channel)
	if h.recorder == nil {
		return
	}

	req := handoff.Request{
		Channel:    channel,
		SessionRef: c.ClientIP(),
		Language:   string(state.Language),
		Flow:       string(state.CurrentFlow),
		Utterance:  strings.TrimSpace(utterance),
	}
	if err := h.recorder.Record(c.Request.Context(), req); err != nil {
		metrics.RecordError(err)
		h.log.ErrorContext(c.Request.Context(), "failed to record handoff request", slog.Any("error", err))
	}
}

func (h *ChatController) fail(c *gin.Context, lang conversation.Language, err error) {
	metrics.RecordError(err)

	userKey := apperrors.KeyErrorGeneric
	if h.errHandler != nil {
		userKey, _ = h.errHandler.Handle(c.Request.Context(), err)
	}

	status := http.StatusInternalServerError
	if apperrors.CodeOf(err) == apperrors.CodeValidation {
		status = http.StatusBadRequest
	}

	c.AbortWithStatusJSON(status, gin.H{"message": h.lookup.Lookup(string(lang), userKey)})
}

func toResponse(reply conversation.Reply) ChatResponse {
	return ChatResponse{
		Message:      reply.Message,
		QuickReplies: reply.QuickReplies,
		NewChatState: reply.NewState,
		IsMainMenu:   reply.IsMainMenu,
		IsPlan:       reply.IsPlan,
		PlanData:     reply.Plan,
	}
}
