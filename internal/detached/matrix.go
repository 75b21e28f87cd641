package detached

import (
	"fmt"
	"sort"

	"github.com/annel0/voxel-detach/internal/voxel"
)

// MatrixID идентификатор матрицы в группе. Выдаётся монотонно и не переиспользуется.
type MatrixID uint64

// ChunkMatrix набор чанков с общим жёстким преобразованием
type ChunkMatrix struct {
	id        MatrixID
	chunkSize int
	chunks    voxel.ChunkSet
	transform Transform

	// onChange вызывается после каждой записи; группа пересобирает меш чанка
	onChange func(m *ChunkMatrix, key voxel.ChunkKey) error
}

func newChunkMatrix(id MatrixID, chunkSize int, chunks voxel.ChunkSet) *ChunkMatrix {
	if chunks == nil {
		chunks = make(voxel.ChunkSet)
	}
	return &ChunkMatrix{
		id:        id,
		chunkSize: chunkSize,
		chunks:    chunks,
		transform: Identity(),
	}
}

// ID возвращает идентификатор матрицы
func (m *ChunkMatrix) ID() MatrixID { return m.id }

// ChunkSize возвращает длину ребра чанка в вокселях
func (m *ChunkMatrix) ChunkSize() int { return m.chunkSize }

// Get возвращает значение вокселя. false если чанка нет или индекс вне диапазона.
func (m *ChunkMatrix) Get(key voxel.ChunkKey, idx int) (voxel.Value, bool) {
	ch, ok := m.chunks[key]
	if !ok {
		return voxel.Empty, false
	}
	return ch.Get(idx)
}

// Set записывает воксель, при необходимости создавая пустой чанк.
// Если пересборка меша не удалась, запись откатывается вместе с созданным чанком.
func (m *ChunkMatrix) Set(key voxel.ChunkKey, idx int, v voxel.Value) error {
	size := m.chunkSize
	if idx < 0 || idx >= size*size*size {
		return fmt.Errorf("матрица %d, чанк %s, индекс %d: %w", m.id, key, idx, ErrOutOfRange)
	}

	ch, existed := m.chunks[key]
	if !existed {
		pos, err := key.Coords()
		if err != nil {
			return fmt.Errorf("матрица %d: %w", m.id, err)
		}
		ch = voxel.NewChunk(pos, size)
		m.chunks[key] = ch
	}
	prev, _ := ch.Get(idx)
	ch.Set(idx, v)

	if m.onChange == nil {
		return nil
	}
	if err := m.onChange(m, key); err != nil {
		if existed {
			ch.Set(idx, prev)
		} else {
			delete(m.chunks, key)
		}
		return err
	}
	return nil
}

// Transform текущее преобразование матрицы
func (m *ChunkMatrix) Transform() Transform { return m.transform }

// SetTransform заменяет преобразование. Проверка обратимости выполняется при чтении.
func (m *ChunkMatrix) SetTransform(t Transform) { m.transform = t }

// Chunk возвращает чанк по ключу
func (m *ChunkMatrix) Chunk(key voxel.ChunkKey) (*voxel.Chunk, bool) {
	ch, ok := m.chunks[key]
	return ch, ok
}

// ChunkKeys ключи чанков в стабильном порядке
func (m *ChunkMatrix) ChunkKeys() []voxel.ChunkKey {
	keys := make([]voxel.ChunkKey, 0, len(m.chunks))
	for k := range m.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len количество чанков
func (m *ChunkMatrix) Len() int { return len(m.chunks) }
