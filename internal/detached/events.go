package detached

import (
	"context"
	"encoding/json"
	"time"

	"github.com/annel0/voxel-detach/internal/eventbus"
	"github.com/annel0/voxel-detach/internal/logging"
	"github.com/google/uuid"
)

// Типы событий группы
const (
	EventMatrixAdded   = "MatrixAdded"
	EventMatrixRemoved = "MatrixRemoved"
	EventMatrixMoved   = "MatrixMoved"
	EventBlockPlaced   = "BlockPlaced"
)

// EventSource значение Envelope.Source для событий группы
const EventSource = "detached"

// MatrixEvent полезная нагрузка MatrixAdded / MatrixRemoved / MatrixMoved
type MatrixEvent struct {
	Matrix MatrixID `json:"matrix"`
	Chunks int      `json:"chunks,omitempty"`
}

// BlockPlacedEvent полезная нагрузка BlockPlaced
type BlockPlacedEvent struct {
	Matrix MatrixID   `json:"matrix"`
	Chunk  string     `json:"chunk"`
	Voxel  int        `json:"voxel"`
	Value  uint16     `json:"value"`
	Hit    [3]float64 `json:"hit"`
}

// publish отправляет событие, если у группы есть Publisher. Ошибки только логируются:
// состояние группы к этому моменту уже изменено.
func (g *Group) publish(eventType string, priority int, payload interface{}) {
	if g.opts.Publisher == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logging.GetGroupLogger().Warn("⚠️ Не удалось сериализовать %s: %v", eventType, err)
		return
	}

	env := &eventbus.Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    EventSource,
		EventType: eventType,
		Version:   1,
		Priority:  priority,
		Payload:   data,
	}
	if err := g.opts.Publisher.Publish(context.Background(), env); err != nil {
		logging.GetGroupLogger().Warn("⚠️ Не удалось опубликовать %s: %v", eventType, err)
	}
}
