// Package eventbus разносит события движка мира (появление и удаление
// обитателей, загрузка слоёв, репликация) между компонентами процесса
// и, при настроенном NATS, между процессами.
package eventbus

import (
	"context"
	"time"
)

// Envelope конверт события движка мира
type Envelope struct {
	ID            string            // UUID
	Timestamp     time.Time         // UTC
	Source        string            // world, layers, replication...
	EventType     string            // Один из Type*
	Version       int               // Версия схемы Payload
	CorrelationID string            // Связывает, например, spawn и destroy одного обитателя
	Tenant        string            // Профиль сохранения, если важен
	Priority      int               // PriorityLow … PriorityCritical
	Payload       []byte            // JSON
	Metadata      map[string]string // Произвольные метки
}

// Filter отбирает события по типу и источнику; пустой список = все
type Filter struct {
	Types   []string
	Sources []string
}

// Subscription отписка от шины
type Subscription interface {
	Unsubscribe()
}

// Handler обработчик событий. Для одной подписки вызовы идут строго
// последовательно и в порядке публикации.
type Handler func(ctx context.Context, ev *Envelope)

// Stats счётчики шины
type Stats struct {
	Published   uint64
	Consumed    uint64
	Dropped     uint64
	InFlight    int // Ожидают доставки: общий буфер плюс очереди подписчиков
	Subscribers int
}

// EventBus шина событий мира: in-memory для одиночной игры и тестов,
// NATS JetStream для нескольких процессов.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
}

func matchFilter(ev *Envelope, f Filter) bool {
	return contains(f.Types, ev.EventType) && contains(f.Sources, ev.Source)
}

func contains(allowed []string, v string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}
