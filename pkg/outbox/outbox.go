// Package outbox реализует Transactional Outbox Pattern: бизнес-изменение и
// запись в outbox пишутся в одной локальной транзакции; отдельный Worker
// вычитывает outbox и публикует события на шину (pkg/eventbus), решая
// проблему dual-write между БД сервиса и шиной событий.
package outbox

import (
	"encoding/json"
	"time"
)

// Status — состояние записи outbox.
type Status string

const (
	// StatusPending — запись ожидает публикации.
	StatusPending Status = "pending"
	// StatusPublished — запись успешно опубликована на шину; терминальное состояние.
	StatusPublished Status = "published"
	// StatusFailed — превышено число попыток публикации; терминальное до ручного RetryFailed.
	StatusFailed Status = "failed"
)

// Outbox — запись в таблице outbox для гарантированной доставки на шину событий.
type Outbox struct {
	ID            string // UUID записи (= event_id конверта)
	AggregateType string // Тип агрегата-владельца (order / inventory / payment / shipping)
	AggregateID   string // ID агрегата (обычно order_id)
	EventType     string // event_type конверта, он же routing key по умолчанию
	RoutingKey    string // Routing key для публикации (обычно совпадает с EventType)
	Payload       []byte // Сериализованный event.Envelope (JSON)
	Status        Status
	RetryCount    int
	CreatedAt     time.Time
	PublishedAt   *time.Time
	LastError     *string
}

// HeadersJSON возвращает метаданные outbox-записи в JSON — используется только
// в логах/отладке, сама публикация формирует AMQP-заголовки из Envelope.
func (o *Outbox) HeadersJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"aggregate_type": o.AggregateType,
		"aggregate_id":   o.AggregateID,
		"event_type":     o.EventType,
	})
}
