package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"kairos/internal/chat"
	"kairos/internal/manager"
	"kairos/internal/service"
	"kairos/pkg/types"
)

// decodeChat validates the request and converts it to chat messages. It
// writes the error response itself and returns false on failure.
func decodeChat(w http.ResponseWriter, r *http.Request, svc Service) ([]chat.Message, bool) {
	if !svc.Ready() {
		writeJSONError(w, http.StatusServiceUnavailable, NoModelMessage)
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON request body")
		return nil, false
	}
	if len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "Messages array is required")
		return nil, false
	}
	msgs := make([]chat.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, chat.Message{Role: chat.ParseRole(m.Role), Content: m.Content, Timestamp: time.Now()})
	}
	return msgs, true
}

// chatHandler godoc
// @Summary      Chat
// @Description  Generates a complete reply to the conversation.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        request  body      types.ChatRequest  true  "Conversation"
// @Success      200      {object}  types.ChatResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /chat [post]
func chatHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, ok := decodeChat(w, r, svc)
		if !ok {
			return
		}
		cl := newChatLog(r, "")
		cl.start(len(msgs))

		ctx, release := generationContext(r)
		defer release()
		model := svc.ActiveModel()
		text, st, err := svc.Generate(ctx, msgs)
		if err != nil && clientGone(r) {
			return
		}
		if status := replyStatus(err); status != http.StatusOK {
			countChat(r, outcomeFor(status))
			writeJSONError(w, status, replyMessage(status, err))
			cl.finish(status, 0, err)
			return
		}
		// an engine error is already appended to the reply text
		countChat(r, outcome(err))
		writeJSON(w, types.ChatResponse{Model: model, Content: text, TokenCount: st.GeneratedTokens})
		cl.finish(http.StatusOK, st.GeneratedTokens, err)
	}
}

// replyStatus maps a generation error to the status of a reply that has not
// started yet. Engine errors keep 200 because the partial reply carries them.
func replyStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, manager.ErrNoModelLoaded):
		return http.StatusServiceUnavailable
	case service.IsTooBusy(err):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusOK
	}
}

func replyMessage(status int, err error) string {
	switch status {
	case http.StatusServiceUnavailable:
		return NoModelMessage
	case http.StatusGatewayTimeout:
		return "generation timed out"
	default:
		return err.Error()
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// chatStreamHandler godoc
// @Summary      Streaming chat
// @Description  Streams the reply as server-sent events: data: {"content": "..."} per fragment, then data: [DONE].
// @Tags         chat
// @Accept       json
// @Produce      text/event-stream
// @Param        request  body      types.ChatRequest  true  "Conversation"
// @Success      200      {object}  types.ChatChunk
// @Failure      400      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /chat/stream [post]
func chatStreamHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, ok := decodeChat(w, r, svc)
		if !ok {
			return
		}
		cl := newChatLog(r, uuid.NewString())
		cl.start(len(msgs))

		ctx, release := generationContext(r)
		defer release()
		sse := newSSEWriter(w)
		st, err := svc.Stream(ctx, msgs, func(tok string) bool {
			cl.fragment(tok)
			return sse.data(types.ChatChunk{Content: tok}) == nil
		})
		if clientGone(r) {
			return
		}
		if err != nil && !sse.started {
			status := statusFor(err)
			msg := err.Error()
			if errors.Is(err, manager.ErrNoModelLoaded) {
				msg = NoModelMessage
			}
			countChat(r, outcomeFor(status))
			writeJSONError(w, status, msg)
			cl.finish(status, 0, err)
			return
		}
		countChat(r, outcome(err))
		_ = sse.done()
		cl.finish(http.StatusOK, st.GeneratedTokens, err)
	}
}
