package eventbus

import (
	"context"

	"github.com/annel0/voxel-detach/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог.
// Полезная нагрузка выводится только на уровне TRACE.
// Функция неблокирующая.
func StartLoggingListener(bus EventBus) error {
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		logging.Debug("[EventBus] %s %s v%d src=%s prio=%d size=%dB", ev.ID, ev.EventType, ev.Version, ev.Source, ev.Priority, len(ev.Payload))
		logging.Trace("[EventBus] %s payload:\n%s", ev.ID, logging.HexDump(ev.Payload))
	})
	if err != nil {
		return err
	}
	logging.Info("🪵 LoggingListener: подписка на все события активирована")
	return nil
}
