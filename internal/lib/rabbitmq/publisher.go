package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/community-access/internal/models"
)

// PublishMessage публикует сообщение в RabbitMQ в формате JSON.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// EventPublisher публикует события изменения доступа в exchange access.
type EventPublisher struct {
	mu         sync.Mutex
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

// NewEventPublisher создаёт публикатор поверх уже настроенного канала.
func NewEventPublisher(ch *amqp.Channel) *EventPublisher {
	return &EventPublisher{
		ch:         ch,
		exchange:   AccessExchange,
		routingKey: AccessRoutingKey,
	}
}

// PublishAccessEvent публикует событие. Канал amqp не разделяется между горутинами без блокировки.
func (p *EventPublisher) PublishAccessEvent(ctx context.Context, event models.AccessEvent) error {
	const op = "rabbitmq.PublishAccessEvent"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishMessage(p.ch, p.exchange, p.routingKey, event)
}
