package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
)

// JetStreamConfig параметры подключения к JetStream
type JetStreamConfig struct {
	URL       string        // nats://127.0.0.1:4222
	Stream    string        // Пусто: "DETACHED"
	Retention time.Duration // MaxAge стрима, 0 без ограничения
	// Replay true: новые подписки читают стрим с начала, иначе только новые события
	Replay bool
}

// JetStreamBus реализует EventBus поверх NATS JetStream.
// События публикуются в subject <prefix>.<EventType>, prefix это имя стрима в нижнем регистре.
// Envelope.ID уходит в Nats-Msg-Id, поэтому повторная публикация того же события в окне дедупликации игнорируется.
type JetStreamBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	stream string
	prefix string
	replay bool

	mu     sync.Mutex
	closed bool

	published uint64
	consumed  uint64
	dropped   uint64
}

// dedupWindow окно дедупликации стрима по Nats-Msg-Id
const dedupWindow = 2 * time.Minute

// NewJetStreamBus подключается к NATS и гарантирует наличие стрима.
func NewJetStreamBus(cfg JetStreamConfig) (*JetStreamBus, error) {
	if cfg.Stream == "" {
		cfg.Stream = "DETACHED"
	}
	prefix := strings.ToLower(cfg.Stream)

	nc, err := nats.Connect(cfg.URL, nats.Name("voxel-detach"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err := js.StreamInfo(cfg.Stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:       cfg.Stream,
			Subjects:   []string{prefix + ".*"},
			Retention:  nats.LimitsPolicy,
			MaxAge:     cfg.Retention,
			Storage:    nats.FileStorage,
			Duplicates: dedupWindow,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("add stream %s: %w", cfg.Stream, err)
		}
	}

	return &JetStreamBus{nc: nc, js: js, stream: cfg.Stream, prefix: prefix, replay: cfg.Replay}, nil
}

// Subject возвращает subject для типа события.
func (jb *JetStreamBus) Subject(eventType string) string {
	return subjectFor(jb.prefix, eventType)
}

func subjectFor(prefix, eventType string) string {
	if eventType == "" {
		return prefix + ".*"
	}
	return prefix + "." + eventType
}

// Publish сериализует Envelope в JSON и публикует в subject <prefix>.<type>.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	if jb.isClosed() {
		return ErrClosed
	}

	data, err := json.Marshal(ev)
	if err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}

	opts := []nats.PubOpt{nats.Context(ctx)}
	if ev.ID != "" {
		opts = append(opts, nats.MsgId(ev.ID))
	}
	if _, err := jb.js.Publish(jb.Subject(ev.EventType), data, opts...); err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return fmt.Errorf("publish %s: %w", ev.EventType, err)
	}
	atomic.AddUint64(&jb.published, 1)
	return nil
}

// Subscribe создаёт эфемерный consumer. Фильтр по одному типу уходит в subject,
// остальное проверяется на клиенте.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	if jb.closed {
		return nil, ErrClosed
	}

	subj := jb.Subject("")
	if len(f.Types) == 1 {
		subj = jb.Subject(f.Types[0])
	}

	deliver := nats.DeliverNew()
	if jb.replay {
		deliver = nats.DeliverAll()
	}

	natSub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			atomic.AddUint64(&jb.dropped, 1)
			_ = msg.Term()
			return
		}
		if matchFilter(&ev, f) {
			h(ctx, &ev)
			atomic.AddUint64(&jb.consumed, 1)
		}
		_ = msg.Ack()
	}, nats.BindStream(jb.stream), nats.ManualAck(), deliver, nats.AckWait(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subj, err)
	}

	return &jetSub{natSub}, nil
}

// jetSub обёртка вокруг *nats.Subscription
type jetSub struct {
	s *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

// Metrics возвращает текущие счётчики. Очередь JetStream хранится на сервере, InFlight всегда 0.
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&jb.published),
		Consumed:  atomic.LoadUint64(&jb.consumed),
		Dropped:   atomic.LoadUint64(&jb.dropped),
	}
}

func (jb *JetStreamBus) isClosed() bool {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	return jb.closed
}

// Close дренирует подписки и соединение с NATS.
func (jb *JetStreamBus) Close() error {
	jb.mu.Lock()
	if jb.closed {
		jb.mu.Unlock()
		return nil
	}
	jb.closed = true
	jb.mu.Unlock()

	return jb.nc.Drain()
}
