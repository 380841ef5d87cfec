package rabbitmq

// Топология событий изменения доступа.
const (
	AccessExchange   = "access"
	AccessRoutingKey = "access.changed"
	AuditQueue       = "access.audit"
)

// QueueConfig очередь и ключ маршрутизации, которым она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetAccessQueues возвращает очереди, которые получают события access.changed.
func GetAccessQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: AuditQueue, RoutingKey: AccessRoutingKey},
	}
}
