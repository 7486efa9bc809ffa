package server

import (
	"encoding/json"
	"errors"
	"net/http"

	domainerrors "github.com/Tomas-vilte/MateDataset/internal/domain/errors"
	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/Tomas-vilte/MateDataset/internal/logger"
)

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type ChatResponse struct {
	SessionID string            `json:"session_id"`
	Message   string            `json:"message"`
	Status    string            `json:"status"`
	RequestID string            `json:"request_id,omitempty"`
	PRURL     string            `json:"pr_url,omitempty"`
	Entities  map[string]string `json:"extracted_entities,omitempty"`
}

type StatusResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	PRURL     string `json:"pr_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "el cuerpo tiene que ser JSON válido")
		return
	}

	reply, err := s.conversations.Handle(r.Context(), req.SessionID, req.Message)
	if err != nil {
		if domainerrors.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error(r.Context(), "falló el turno de conversación", err)
		writeError(w, http.StatusInternalServerError, "error interno")
		return
	}

	resp := ChatResponse{
		SessionID: reply.SessionID,
		Message:   reply.Message,
		Status:    reply.Status,
		RequestID: reply.RequestID,
		Entities:  reply.Entities,
	}
	// si el pedido ya tiene PR, la conversación puede mostrarla directo
	if reply.RequestID != "" {
		if dataset, err := s.requests.Get(r.Context(), reply.RequestID); err == nil {
			resp.PRURL = dataset.PRURL
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")

	req, err := s.requests.Get(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, ports.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, "no existe un pedido con ese id")
			return
		}
		logger.Error(r.Context(), "no se pudo leer el pedido", err, "request_id", requestID)
		writeError(w, http.StatusInternalServerError, "error interno")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse(req))
}

func statusResponse(req *models.DatasetRequest) StatusResponse {
	return StatusResponse{
		RequestID: req.RequestID,
		Status:    string(req.Status),
		PRURL:     req.PRURL,
		Error:     req.Error,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// si el cliente cortó, el Encode falla y no hay nada más que hacer
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
