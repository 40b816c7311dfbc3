package outbox

import "time"

// OutboxModel — GORM модель для таблицы outbox.
type OutboxModel struct {
	ID            string     `gorm:"column:id;type:varchar(36);primaryKey"`
	AggregateType string     `gorm:"column:aggregate_type;type:varchar(50);not null;index:idx_outbox_aggregate"`
	AggregateID   string     `gorm:"column:aggregate_id;type:varchar(36);not null;index:idx_outbox_aggregate"`
	EventType     string     `gorm:"column:event_type;type:varchar(100);not null"`
	RoutingKey    string     `gorm:"column:routing_key;type:varchar(100);not null"`
	Payload       []byte     `gorm:"column:payload;type:json;not null"`
	Status        string     `gorm:"column:status;type:varchar(20);not null;default:pending;index:idx_outbox_status"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime;index:idx_outbox_status"`
	PublishedAt   *time.Time `gorm:"column:published_at"`
	RetryCount    int        `gorm:"column:retry_count;not null;default:0"`
	LastError     *string    `gorm:"column:last_error;type:text"`
}

// TableName возвращает имя таблицы в БД.
func (OutboxModel) TableName() string {
	return "outbox"
}

// ToDomain конвертирует GORM модель в доменную сущность.
func (m *OutboxModel) ToDomain() *Outbox {
	return &Outbox{
		ID:            m.ID,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		EventType:     m.EventType,
		RoutingKey:    m.RoutingKey,
		Payload:       m.Payload,
		Status:        Status(m.Status),
		CreatedAt:     m.CreatedAt,
		PublishedAt:   m.PublishedAt,
		RetryCount:    m.RetryCount,
		LastError:     m.LastError,
	}
}

// ModelFromDomain конвертирует доменную сущность в GORM модель.
func ModelFromDomain(o *Outbox) *OutboxModel {
	status := o.Status
	if status == "" {
		status = StatusPending
	}
	return &OutboxModel{
		ID:            o.ID,
		AggregateType: o.AggregateType,
		AggregateID:   o.AggregateID,
		EventType:     o.EventType,
		RoutingKey:    o.RoutingKey,
		Payload:       o.Payload,
		Status:        string(status),
		CreatedAt:     o.CreatedAt,
		PublishedAt:   o.PublishedAt,
		RetryCount:    o.RetryCount,
		LastError:     o.LastError,
	}
}
