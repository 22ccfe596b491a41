package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/couchcryptid/ocean-query-service/internal/pipeline"
	"github.com/couchcryptid/ocean-query-service/internal/session"
)

const maxChatBody = 64 << 10

// Answerer resolves one chat turn within a session.
type Answerer interface {
	ResolveAndAnswer(ctx context.Context, sessionID, text string) (pipeline.Answer, error)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Type      string   `json:"type"`
	Answer    *string  `json:"answer,omitempty"`
	Data      any      `json:"data,omitempty"`
	Columns   []string `json:"columns,omitempty"`
	SessionID string   `json:"session_id"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func handleChat(answerer Answerer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := chimiddleware.GetReqID(r.Context())

		var req chatRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody))
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", RequestID: reqID})
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required", RequestID: reqID})
			return
		}
		// Keyless clients share one conversation so follow-ups still resolve.
		if req.SessionID == "" {
			req.SessionID = session.DefaultID
		}

		answer, err := answerer.ResolveAndAnswer(r.Context(), req.SessionID, req.Message)
		if err != nil {
			logger.Error("chat turn failed", "request_id", reqID, "session_id", req.SessionID, "error", err)
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "could not answer the question", RequestID: reqID})
			return
		}
		writeJSON(w, http.StatusOK, toChatResponse(answer))
	}
}

// toChatResponse maps an answer onto the wire shape. Unresolved answers are
// plain text answers to the client.
func toChatResponse(a pipeline.Answer) chatResponse {
	resp := chatResponse{Type: string(a.Kind), SessionID: a.SessionID}
	switch a.Kind {
	case pipeline.KindChart:
		resp.Answer = &a.Text
		resp.Data = a.Chart
	case pipeline.KindTable:
		resp.Data = a.Table
		resp.Columns = a.Columns
	case pipeline.KindUnresolved:
		resp.Type = string(pipeline.KindNarrative)
		resp.Answer = &a.Text
	default:
		resp.Answer = &a.Text
	}
	return resp
}
