package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Envelope универсальный контейнер события.
// Поля фиксированы, версия схемы полезной нагрузки лежит в Version.
type Envelope struct {
	ID            string            // UUID события
	Timestamp     time.Time         // Время создания (UTC)
	Source        string            // Подсистема-источник ("detached")
	EventType     string            // MatrixAdded, BlockPlaced...
	Version       int               // Версия схемы Payload
	CorrelationID string            // Связывает цепочки событий
	Priority      int               // PriorityLow..PriorityCritical
	Payload       []byte            // JSON
	Metadata      map[string]string // Произвольные метаданные
}

// Приоритеты событий. Ниже PriorityNormal событие можно отбросить при переполнении.
const (
	PriorityLow      = 1
	PriorityNormal   = 5
	PriorityHigh     = 7
	PriorityCritical = 9
)

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types   []string // Пусто: все типы
	Sources []string // Пусто: все источники
}

// Subscription возвращается при подписке и позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные счётчики шины.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// ErrClosed возвращается при публикации в закрытую шину.
var ErrClosed = errors.New("eventbus: шина закрыта")

// EventBus абстракция шины событий группы матриц.
// Реализации: in-memory и NATS JetStream.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

// droppable true если событие можно потерять при переполнении
func droppable(ev *Envelope) bool { return ev.Priority < PriorityNormal }

//================ In-Memory implementation =================//

// memoryBus раздаёт события через общий буфер и почтовые ящики подписчиков.
// Каждый подписчик получает события строго в порядке публикации.
type memoryBus struct {
	buffer  chan *Envelope
	mailbox int

	mu     sync.RWMutex
	subs   map[int]*memSubscriber
	nextID int
	wg     sync.WaitGroup

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64

	// closeMu защищает buffer от отправки после закрытия
	closeMu sync.RWMutex
	closed  bool
	done    chan struct{}
}

type memSubscriber struct {
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	inbox   chan *Envelope
}

// NewMemoryBus создаёт in-memory шину. capacity задаёт и общий буфер, и ящик каждого подписчика.
func NewMemoryBus(capacity int) EventBus {
	if capacity <= 0 {
		capacity = 1
	}
	mb := &memoryBus{
		buffer:  make(chan *Envelope, capacity),
		mailbox: capacity,
		subs:    make(map[int]*memSubscriber),
		done:    make(chan struct{}),
	}
	go mb.dispatchLoop()
	return mb
}

// Publish кладёт событие в буфер. При переполнении событие с низким приоритетом
// отбрасывается, остальные ждут места или отмены ctx.
func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	mb.closeMu.RLock()
	defer mb.closeMu.RUnlock()
	if mb.closed {
		return ErrClosed
	}

	select {
	case mb.buffer <- ev:
	default:
		if droppable(ev) {
			mb.dropped.Add(1)
			return nil
		}
		select {
		case mb.buffer <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	mb.published.Add(1)
	return nil
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	mb.closeMu.RLock()
	defer mb.closeMu.RUnlock()
	if mb.closed {
		return nil, ErrClosed
	}

	cctx, cancel := context.WithCancel(ctx)
	sub := &memSubscriber{
		filter:  f,
		handler: h,
		ctx:     cctx,
		cancel:  cancel,
		inbox:   make(chan *Envelope, mb.mailbox),
	}

	mb.mu.Lock()
	id := mb.nextID
	mb.nextID++
	mb.subs[id] = sub
	mb.mu.Unlock()

	mb.wg.Add(1)
	go mb.deliver(sub)

	return &memSub{bus: mb, id: id}, nil
}

func (mb *memoryBus) Metrics() Stats {
	return Stats{
		Published: mb.published.Load(),
		Consumed:  mb.consumed.Load(),
		Dropped:   mb.dropped.Load(),
		InFlight:  len(mb.buffer),
	}
}

// Close останавливает приём событий и дожидается доставки уже принятых.
func (mb *memoryBus) Close() error {
	mb.closeMu.Lock()
	if mb.closed {
		mb.closeMu.Unlock()
		return nil
	}
	mb.closed = true
	close(mb.buffer)
	mb.closeMu.Unlock()

	<-mb.done
	mb.wg.Wait()
	return nil
}

// dispatchLoop единственный отправитель в ящики подписчиков, поэтому только он их и закрывает.
func (mb *memoryBus) dispatchLoop() {
	defer close(mb.done)
	var subs []*memSubscriber
	for ev := range mb.buffer {
		// Снимок под локом: обработчик может отписаться, пока мы ждём места в его ящике
		mb.mu.RLock()
		subs = subs[:0]
		for _, sub := range mb.subs {
			subs = append(subs, sub)
		}
		mb.mu.RUnlock()

		for _, sub := range subs {
			if matchFilter(ev, sub.filter) {
				mb.enqueue(sub, ev)
			}
		}
	}

	mb.mu.Lock()
	for _, sub := range mb.subs {
		close(sub.inbox)
	}
	mb.subs = map[int]*memSubscriber{}
	mb.mu.Unlock()
}

func (mb *memoryBus) enqueue(sub *memSubscriber, ev *Envelope) {
	select {
	case sub.inbox <- ev:
		return
	default:
	}
	if droppable(ev) {
		mb.dropped.Add(1)
		return
	}
	select {
	case sub.inbox <- ev:
	case <-sub.ctx.Done():
	}
}

func (mb *memoryBus) deliver(sub *memSubscriber) {
	defer mb.wg.Done()
	for {
		select {
		case <-sub.ctx.Done():
			return
		case ev, ok := <-sub.inbox:
			if !ok {
				return
			}
			sub.handler(sub.ctx, ev)
			mb.consumed.Add(1)
		}
	}
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources)
}

type memSub struct {
	bus *memoryBus
	id  int
}

// Unsubscribe останавливает доставку. Ящик не закрывается: его закрывает только dispatchLoop.
func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	if sub, ok := s.bus.subs[s.id]; ok {
		sub.cancel()
		delete(s.bus.subs, s.id)
	}
	s.bus.mu.Unlock()
}
