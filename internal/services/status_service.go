package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/Tomas-vilte/MateDataset/internal/logger"
)

var _ ports.StatusWatcher = (*StatusService)(nil)

// StatusService observa el registro de pedidos y propaga cada cambio a los
// suscriptores. Push y poll son equivalentes en el estado terminal: los dos
// terminan viendo el mismo registro.
type StatusService struct {
	requests ports.RequestStore
	interval time.Duration

	mu   sync.Mutex
	subs map[string]*subscription
}

func NewStatusService(requests ports.RequestStore, interval time.Duration) *StatusService {
	return &StatusService{
		requests: requests,
		interval: interval,
		subs:     make(map[string]*subscription),
	}
}

type subscription struct {
	id      string
	service *StatusService
	cancel  context.CancelFunc
	once    sync.Once
}

// Cancel es idempotente: corta el watcher y desregistra la suscripción.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		s.service.remove(s.id, s)
	})
}

func (s *StatusService) remove(id string, sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[id] == sub {
		delete(s.subs, id)
	}
}

// Subscribe registra onUpdate para cada cambio del pedido. A lo sumo una
// suscripción activa por id: la nueva desplaza a la anterior. El estado
// terminal se entrega exactamente una vez y cierra la suscripción.
func (s *StatusService) Subscribe(id string, onUpdate func(models.DatasetRequest)) (ports.CancelHandle, error) {
	if id == "" {
		return nil, fmt.Errorf("falta el id del pedido")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{id: id, service: s, cancel: cancel}

	s.mu.Lock()
	prev := s.subs[id]
	s.subs[id] = sub
	s.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}

	go s.watch(ctx, sub, onUpdate)
	return sub, nil
}

func (s *StatusService) watch(ctx context.Context, sub *subscription, onUpdate func(models.DatasetRequest)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last *models.DatasetRequest
	for {
		req, err := s.requests.Get(ctx, sub.id)
		if err != nil {
			// El registro puede no existir todavía; se sigue mirando.
			logger.Debug(ctx, "no se pudo leer el pedido", "request_id", sub.id, "error", err)
		} else if changed(last, req) {
			onUpdate(*req)
			last = req
			if req.Status.IsTerminal() {
				sub.Cancel()
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func changed(last, current *models.DatasetRequest) bool {
	if last == nil {
		return true
	}
	return last.Status != current.Status ||
		last.PRURL != current.PRURL ||
		last.Error != current.Error
}

// Poll lee el pedido a intervalo fijo hasta verlo terminal o agotar los
// intentos. Devuelve el último estado leído aunque no sea terminal.
func (s *StatusService) Poll(ctx context.Context, id string, interval time.Duration, maxAttempts int) (*models.DatasetRequest, error) {
	var last *models.DatasetRequest
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := s.requests.Get(ctx, id)
		if err != nil {
			// una lectura fallida no corta el poll: el próximo intento
			// puede andar
			logger.Debug(ctx, "no se pudo leer el pedido", "request_id", id, "error", err)
			lastErr = err
		} else {
			last = req
			lastErr = nil
			if req.Status.IsTerminal() {
				break
			}
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(interval):
		}
	}
	if last == nil {
		return nil, lastErr
	}
	return last, nil
}
