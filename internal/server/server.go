package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/Tomas-vilte/MateDataset/internal/logger"
	"github.com/Tomas-vilte/MateDataset/internal/services"
)

// shutdownTimeout es lo que se le da a las conexiones en vuelo para
// terminar cuando el proceso recibe la señal de corte.
const shutdownTimeout = 10 * time.Second

// ChatService es el turno de conversación que expone el endpoint de chat.
type ChatService interface {
	Handle(ctx context.Context, sessionID, message string) (*services.ChatReply, error)
}

// Server expone la API HTTP del chatbot: el chat, la consulta de estado por
// poll y el socket de estado por push.
type Server struct {
	conversations   ChatService
	requests        ports.RequestStore
	watcher         ports.StatusWatcher
	httpServer      *http.Server
	mux             *http.ServeMux
	pollInterval    time.Duration
	pollMaxAttempts int
}

func New(port int, conversations ChatService, requests ports.RequestStore, watcher ports.StatusWatcher, pollInterval time.Duration, pollMaxAttempts int) *Server {
	s := &Server{
		conversations:   conversations,
		requests:        requests,
		watcher:         watcher,
		pollInterval:    pollInterval,
		pollMaxAttempts: pollMaxAttempts,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /status/{request_id}", s.handleStatus)
	mux.HandleFunc("GET /ws/status/{request_id}", s.handleStatusSocket)
	s.mux = mux

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler expone el router, principalmente para los tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start sirve hasta que el contexto se cancele y después apaga el server
// dándole un rato a las conexiones en vuelo.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "API escuchando", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("el server no pudo arrancar: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error en el shutdown del server: %w", err)
	}
	return nil
}
