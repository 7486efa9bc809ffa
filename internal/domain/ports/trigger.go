package ports

import "context"

// JobTrigger dispara una ejecución inmediata del worker. Es puramente una
// optimización de latencia: si falla, el mensaje sigue en la cola y lo
// levanta la próxima corrida programada.
type JobTrigger interface {
	TriggerNow(ctx context.Context) error
}
