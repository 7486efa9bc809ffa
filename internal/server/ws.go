package server

import (
	"net/http"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/logger"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// la API no sirve browser content, no hay CSRF que cuidar acá
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleStatusSocket empuja cada cambio de estado del pedido por el socket.
// Al entregar un estado terminal cierra la conexión; si la suscripción no se
// puede armar, degrada a un poll y manda lo último que se vio.
func (s *Server) handleStatusSocket(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade ya respondió el error HTTP
		return
	}
	defer conn.Close()

	updates := make(chan models.DatasetRequest, 8)
	handle, err := s.watcher.Subscribe(requestID, func(req models.DatasetRequest) {
		// si el cliente no drena, se descarta lo más viejo: el estado más
		// nuevo (y en particular el terminal) siempre queda en el canal
		for {
			select {
			case updates <- req:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	if err != nil {
		logger.Warn(r.Context(), "no se pudo suscribir, se degrada a poll",
			"request_id", requestID, "error", err)
		req, pollErr := s.watcher.Poll(r.Context(), requestID, s.pollInterval, s.pollMaxAttempts)
		if pollErr != nil || req == nil {
			return
		}
		_ = conn.WriteJSON(statusResponse(req))
		return
	}
	defer handle.Cancel()

	// lector solo para detectar el cierre del lado del cliente
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case req := <-updates:
			if err := conn.WriteJSON(statusResponse(&req)); err != nil {
				return
			}
			if req.Status.IsTerminal() {
				return
			}
		}
	}
}
