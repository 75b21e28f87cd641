package detached

import (
	"fmt"

	"github.com/annel0/voxel-detach/internal/vec"
	"github.com/annel0/voxel-detach/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
)

// ChunkSnapshot сериализуемая копия чанка
type ChunkSnapshot struct {
	Position [3]int        `json:"position"`
	Voxels   []voxel.Value `json:"voxels"`
}

// MatrixSnapshot сериализуемая копия матрицы
type MatrixSnapshot struct {
	ID          MatrixID        `json:"id"`
	ChunkSize   int             `json:"chunk_size"`
	Rotation    [9]float64      `json:"rotation"`
	Translation [3]float64      `json:"translation"`
	Chunks      []ChunkSnapshot `json:"chunks"`
}

// Snapshot копирует матрицу
func (g *Group) Snapshot(id MatrixID) (MatrixSnapshot, error) {
	m, err := g.Matrix(id)
	if err != nil {
		return MatrixSnapshot{}, err
	}

	s := MatrixSnapshot{
		ID:          id,
		ChunkSize:   m.chunkSize,
		Rotation:    [9]float64(m.transform.Rotation),
		Translation: [3]float64(m.transform.Translation),
		Chunks:      make([]ChunkSnapshot, 0, len(m.chunks)),
	}
	for _, key := range m.ChunkKeys() {
		ch := m.chunks[key]
		voxels := make([]voxel.Value, len(ch.Voxels))
		copy(voxels, ch.Voxels)
		s.Chunks = append(s.Chunks, ChunkSnapshot{
			Position: [3]int{ch.Position.X, ch.Position.Y, ch.Position.Z},
			Voxels:   voxels,
		})
	}
	return s, nil
}

// SnapshotAll копирует все живые матрицы в порядке добавления
func (g *Group) SnapshotAll() []MatrixSnapshot {
	out := make([]MatrixSnapshot, 0, g.live)
	for _, m := range g.Matrices() {
		s, _ := g.Snapshot(m.id)
		out = append(out, s)
	}
	return out
}

// Restore добавляет матрицу из снимка. Матрица получает новый id.
func (g *Group) Restore(s MatrixSnapshot) (MatrixID, error) {
	if s.ChunkSize != g.opts.ChunkSize {
		return 0, fmt.Errorf("снимок матрицы %d: размер чанка %d, ожидался %d", s.ID, s.ChunkSize, g.opts.ChunkSize)
	}
	t := Transform{Rotation: mgl64.Mat3(s.Rotation), Translation: mgl64.Vec3(s.Translation)}
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("снимок матрицы %d: %w", s.ID, err)
	}

	volume := s.ChunkSize * s.ChunkSize * s.ChunkSize
	chunks := make(voxel.ChunkSet, len(s.Chunks))
	for _, cs := range s.Chunks {
		if len(cs.Voxels) != volume {
			return 0, fmt.Errorf("снимок матрицы %d: чанк %v содержит %d вокселей, ожидалось %d", s.ID, cs.Position, len(cs.Voxels), volume)
		}
		ch := voxel.NewChunk(vec.Vec3{X: cs.Position[0], Y: cs.Position[1], Z: cs.Position[2]}, s.ChunkSize)
		copy(ch.Voxels, cs.Voxels)
		chunks[ch.Key()] = ch
	}
	return g.add(chunks, t)
}
