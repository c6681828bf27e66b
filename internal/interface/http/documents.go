package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

const invalidJSONMessage = "Invalid JSON payload."

func (s *Server) handleGetDocument(name document.Name) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := s.deps.Documents.Get(r.Context(), name)
		if err != nil {
			logger.FromContext(r.Context()).Error("document read failed",
				logger.Resource(string(name)), logger.Err(err))
			writeError(w, http.StatusInternalServerError, "Failed to read "+string(name)+".")
			return
		}
		writeRaw(w, http.StatusOK, body)
	}
}

func (s *Server) handlePutDocument(name document.Name) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "Payload too large.")
				return
			}
			writeError(w, http.StatusBadRequest, invalidJSONMessage)
			return
		}

		doc, err := s.deps.Documents.Put(r.Context(), name, body)
		if err != nil {
			if msg, ok := validationMessage(err); ok {
				writeError(w, http.StatusBadRequest, msg)
				return
			}
			logger.FromContext(r.Context()).Error("document write failed",
				logger.Resource(string(name)),
				logger.String("request_id", getRequestID(r.Context())),
				logger.Err(err))
			writeError(w, http.StatusInternalServerError, "Failed to save "+string(name)+".")
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not found")
}

// validationMessage returns the client-facing message of a payload error.
func validationMessage(err error) (string, bool) {
	if errors.Is(err, document.ErrInvalidJSON) {
		return invalidJSONMessage, true
	}
	var shape *document.ShapeError
	if errors.As(err, &shape) {
		return shape.Message, true
	}
	if errors.Is(err, document.ErrInvalidShape) {
		return err.Error(), true
	}
	return "", false
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeRaw(w, status, data)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	data, _ := json.Marshal(errorResponse{Error: message})
	writeRaw(w, status, data)
}
