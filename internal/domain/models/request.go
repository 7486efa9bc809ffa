package models

import "time"

type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestProcessing RequestStatus = "processing"
	RequestCompleted  RequestStatus = "completed"
	RequestFailed     RequestStatus = "failed"
)

// IsTerminal indica si el estado es final. Un estado final nunca se pisa.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestCompleted || s == RequestFailed
}

// RequestPayload son los cuatro campos ya completos de un pedido de dataset.
type RequestPayload struct {
	DatasetName    string            `json:"dataset_name"`
	Location       string            `json:"location"`
	Labels         map[string]string `json:"labels"`
	ServiceAccount string            `json:"service_account"`
}

// DatasetRequest es la unidad de trabajo que representa un cambio de
// aprovisionamiento completamente especificado. Se crea una sola vez por
// conversación completada; el pipeline del worker es dueño de su ciclo de
// vida desde el despacho hasta el estado terminal.
type DatasetRequest struct {
	RequestID string
	SessionID string
	Payload   RequestPayload
	Status    RequestStatus
	PRURL     string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QueueMessage es el cuerpo JSON que viaja por la cola. Replica el id y el
// payload del DatasetRequest; la entrega es at-least-once así que el
// consumidor tiene que tolerar duplicados.
type QueueMessage struct {
	RequestID      string            `json:"request_id"`
	SessionID      string            `json:"session_id"`
	DatasetName    string            `json:"dataset_name"`
	Location       string            `json:"location"`
	Labels         map[string]string `json:"labels"`
	ServiceAccount string            `json:"service_account"`
}

func (m QueueMessage) ToPayload() RequestPayload {
	return RequestPayload{
		DatasetName:    m.DatasetName,
		Location:       m.Location,
		Labels:         m.Labels,
		ServiceAccount: m.ServiceAccount,
	}
}

func NewQueueMessage(req *DatasetRequest) QueueMessage {
	return QueueMessage{
		RequestID:      req.RequestID,
		SessionID:      req.SessionID,
		DatasetName:    req.Payload.DatasetName,
		Location:       req.Payload.Location,
		Labels:         req.Payload.Labels,
		ServiceAccount: req.Payload.ServiceAccount,
	}
}
