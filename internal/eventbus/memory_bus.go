package eventbus

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// memoryBus in-process шина. Publish кладёт событие в общий буфер,
// dispatchLoop раскладывает его по очередям подписчиков, у каждой
// подписки свой воркер. Так spawn одного обитателя никогда не обгоняет
// его destroy, а медленный подписчик не задерживает остальных.
type memoryBus struct {
	mu       sync.RWMutex
	queues   map[int]*subQueue
	nextID   int
	buffer   chan *Envelope
	capacity int

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

type subQueue struct {
	id      int
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	events  chan *Envelope
}

// NewMemoryBus создаёт in-memory шину. capacity задаёт и общий буфер,
// и очередь каждого подписчика.
func NewMemoryBus(capacity int) EventBus {
	mb := &memoryBus{
		queues:   make(map[int]*subQueue),
		buffer:   make(chan *Envelope, capacity),
		capacity: max(capacity, 1),
	}
	go mb.dispatchLoop()
	return mb
}

// Publish не блокирует, пока в буфере есть место. При заполненном буфере
// события ниже PriorityNormal отбрасываются, остальные ждут места или ctx.
func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	select {
	case mb.buffer <- ev:
		mb.published.Add(1)
		return nil
	default:
	}

	if ev.Priority < PriorityNormal {
		mb.dropped.Add(1)
		return nil
	}
	select {
	case mb.buffer <- ev:
		mb.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe регистрирует очередь подписчика. Подписка живёт до Unsubscribe
// или отмены ctx.
func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	qctx, cancel := context.WithCancel(ctx)

	mb.mu.Lock()
	q := &subQueue{
		id:      mb.nextID,
		filter:  f,
		handler: h,
		ctx:     qctx,
		cancel:  cancel,
		events:  make(chan *Envelope, mb.capacity),
	}
	mb.queues[q.id] = q
	mb.nextID++
	mb.mu.Unlock()

	go mb.drain(q)
	return &memSub{bus: mb, id: q.id}, nil
}

func (mb *memoryBus) Metrics() Stats {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	inFlight := len(mb.buffer)
	for _, q := range mb.queues {
		inFlight += len(q.events)
	}
	return Stats{
		Published:   mb.published.Load(),
		Consumed:    mb.consumed.Load(),
		Dropped:     mb.dropped.Load(),
		InFlight:    inFlight,
		Subscribers: len(mb.queues),
	}
}

func (mb *memoryBus) dispatchLoop() {
	for ev := range mb.buffer {
		for _, q := range mb.snapshot() {
			if matchFilter(ev, q.filter) {
				mb.enqueue(q, ev)
			}
		}
	}
}

// snapshot подписчики в порядке подписки
func (mb *memoryBus) snapshot() []*subQueue {
	mb.mu.RLock()
	queues := make([]*subQueue, 0, len(mb.queues))
	for _, q := range mb.queues {
		queues = append(queues, q)
	}
	mb.mu.RUnlock()

	sort.Slice(queues, func(i, j int) bool { return queues[i].id < queues[j].id })
	return queues
}

// enqueue действует как Publish, но для очереди одного подписчика:
// низкий приоритет теряется, важные события ждут места.
func (mb *memoryBus) enqueue(q *subQueue, ev *Envelope) {
	select {
	case q.events <- ev:
		return
	case <-q.ctx.Done():
		return
	default:
	}

	if ev.Priority < PriorityNormal {
		mb.dropped.Add(1)
		return
	}
	select {
	case q.events <- ev:
	case <-q.ctx.Done():
	}
}

// drain воркер подписки: обработчик вызывается по одному событию за раз
func (mb *memoryBus) drain(q *subQueue) {
	defer mb.remove(q.id)

	for {
		select {
		case <-q.ctx.Done():
			return
		case ev := <-q.events:
			if q.ctx.Err() != nil {
				return
			}
			q.handler(q.ctx, ev)
			mb.consumed.Add(1)
		}
	}
}

func (mb *memoryBus) remove(id int) {
	mb.mu.Lock()
	if q, ok := mb.queues[id]; ok {
		q.cancel()
		delete(mb.queues, id)
	}
	mb.mu.Unlock()
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.remove(s.id)
}
