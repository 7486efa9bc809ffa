package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	domainerrors "github.com/Tomas-vilte/MateDataset/internal/domain/errors"
	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
)

// PubSubPublisher publica pedidos completos en el tópico de Pub/Sub. El
// ruteo a dead-letter después del máximo de intentos lo configura la
// suscripción del lado de la infraestructura.
type PubSubPublisher struct {
	topic *pubsub.Topic
}

var _ ports.Publisher = (*PubSubPublisher)(nil)

func NewPubSubPublisher(client *pubsub.Client, topicID string) *PubSubPublisher {
	return &PubSubPublisher{topic: client.Topic(topicID)}
}

// Publish espera la confirmación del server antes de devolver: un error acá
// garantiza que el mensaje no quedó encolado.
func (p *PubSubPublisher) Publish(ctx context.Context, msg models.QueueMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("error al codificar el mensaje: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"request_id":   msg.RequestID,
			"dataset_name": msg.DatasetName,
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", domainerrors.NewExternalServiceError("pubsub", "publish", err)
	}
	return id, nil
}

// PubSubConsumer consume una suscripción (de trabajo o de dead-letter) con
// entregas concurrentes acotadas.
type PubSubConsumer struct {
	sub *pubsub.Subscription
}

var _ ports.Consumer = (*PubSubConsumer)(nil)

func NewPubSubConsumer(client *pubsub.Client, subscriptionID string, maxInFlight int) *PubSubConsumer {
	sub := client.Subscription(subscriptionID)
	sub.ReceiveSettings.MaxOutstandingMessages = maxInFlight
	return &PubSubConsumer{sub: sub}
}

func (c *PubSubConsumer) Receive(ctx context.Context, handler func(ctx context.Context, d ports.Delivery)) error {
	err := c.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		handler(ctx, &pubsubDelivery{msg: m})
	})
	if err != nil && ctx.Err() == nil {
		return domainerrors.NewExternalServiceError("pubsub", "receive", err)
	}
	return nil
}

type pubsubDelivery struct {
	msg *pubsub.Message
}

var _ ports.Delivery = (*pubsubDelivery)(nil)

func (d *pubsubDelivery) Body() []byte { return d.msg.Data }

func (d *pubsubDelivery) Attempt() int {
	if d.msg.DeliveryAttempt != nil {
		return *d.msg.DeliveryAttempt
	}
	return 0
}

func (d *pubsubDelivery) Ack() { d.msg.Ack() }

func (d *pubsubDelivery) Nack() { d.msg.Nack() }
