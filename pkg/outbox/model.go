package outbox

import (
	"encoding/json"
	"time"
)

// Model - GORM модель таблицы outbox.
type Model struct {
	ID          string     `gorm:"column:id;type:varchar(36);primaryKey"`
	AggregateID string     `gorm:"column:aggregate_id;type:varchar(36);not null;index"`
	EventType   string     `gorm:"column:event_type;type:varchar(100);not null"`
	Topic       string     `gorm:"column:topic;type:varchar(100);not null"`
	MessageKey  string     `gorm:"column:message_key;type:varchar(100);not null"`
	Payload     []byte     `gorm:"column:payload;type:json;not null"`
	Headers     []byte     `gorm:"column:headers;type:json"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null"`
	PublishedAt *time.Time `gorm:"column:published_at;index:idx_outbox_pending,priority:1"`
	Attempts    int        `gorm:"column:attempts;not null;default:0;index:idx_outbox_pending,priority:2"`
	LastError   *string    `gorm:"column:last_error;type:text"`
}

// TableName возвращает имя таблицы.
func (Model) TableName() string {
	return "outbox"
}

func (m *Model) toRecord() *Record {
	r := &Record{
		ID:          m.ID,
		AggregateID: m.AggregateID,
		EventType:   m.EventType,
		Topic:       m.Topic,
		Key:         m.MessageKey,
		Payload:     m.Payload,
		CreatedAt:   m.CreatedAt,
		PublishedAt: m.PublishedAt,
		Attempts:    m.Attempts,
		LastError:   m.LastError,
	}
	if len(m.Headers) > 0 {
		_ = json.Unmarshal(m.Headers, &r.Headers)
	}
	return r
}

func modelFromRecord(r *Record) *Model {
	m := &Model{
		ID:          r.ID,
		AggregateID: r.AggregateID,
		EventType:   r.EventType,
		Topic:       r.Topic,
		MessageKey:  r.Key,
		Payload:     r.Payload,
		CreatedAt:   r.CreatedAt,
		PublishedAt: r.PublishedAt,
		Attempts:    r.Attempts,
		LastError:   r.LastError,
	}
	if len(r.Headers) > 0 {
		m.Headers, _ = json.Marshal(r.Headers)
	}
	return m
}
