package detached

import (
	"fmt"
	"time"

	"github.com/annel0/voxel-detach/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
)

// ResolvedIndex матрица, чанк и воксель, которым принадлежит мировая точка
type ResolvedIndex struct {
	Matrix MatrixID
	Chunk  voxel.ChunkKey
	Voxel  int
}

// locate переводит мировую точку в чанк и индекс в локальном фрейме матрицы
func (g *Group) locate(m *ChunkMatrix, p mgl64.Vec3) (voxel.ChunkKey, int, error) {
	local, err := m.transform.ToLocal(p)
	if err != nil {
		return "", 0, fmt.Errorf("матрица %d: %w", m.id, err)
	}
	size, cube := g.opts.ChunkSize, g.opts.CubeSize
	key := voxel.KeyOf(voxel.ChunkKeyOf(local, size, cube))
	return key, voxel.VoxelIndexOf(local, size, cube), nil
}

// GetIndex ищет первую по порядку добавления матрицу, у которой воксель в точке p занят.
// ok=false если такой матрицы нет. Необратимое преобразование любой матрицы прерывает поиск.
func (g *Group) GetIndex(p mgl64.Vec3) (ResolvedIndex, bool, error) {
	defer g.opts.Metrics.observeResolve(time.Now())

	for _, m := range g.slots {
		if m == nil {
			continue
		}
		key, idx, err := g.locate(m, p)
		if err != nil {
			return ResolvedIndex{}, false, err
		}
		if v, ok := m.Get(key, idx); ok && v != voxel.Empty {
			return ResolvedIndex{Matrix: m.id, Chunk: key, Voxel: idx}, true, nil
		}
	}
	return ResolvedIndex{}, false, nil
}

// Resolve возвращает id матрицы, занимающей точку p
func (g *Group) Resolve(p mgl64.Vec3) (MatrixID, bool, error) {
	ri, ok, err := g.GetIndex(p)
	return ri.Matrix, ok, err
}

// GetBlock значение вокселя в мировой точке среди всех матриц
func (g *Group) GetBlock(p mgl64.Vec3) (voxel.Value, bool, error) {
	ri, ok, err := g.GetIndex(p)
	if err != nil || !ok {
		return voxel.Empty, false, err
	}
	v, _ := g.slots[ri.Matrix-1].Get(ri.Chunk, ri.Voxel)
	return v, true, nil
}

// SetBlock перезаписывает занятый воксель в мировой точке. Пустое место не принадлежит
// ни одной матрице, поэтому в этом случае возвращается ErrNotFound.
func (g *Group) SetBlock(p mgl64.Vec3, v voxel.Value) (ResolvedIndex, error) {
	ri, ok, err := g.GetIndex(p)
	if err != nil {
		return ResolvedIndex{}, err
	}
	if !ok {
		return ResolvedIndex{}, fmt.Errorf("точка %v: %w", p, ErrNotFound)
	}
	if err := g.slots[ri.Matrix-1].Set(ri.Chunk, ri.Voxel, v); err != nil {
		return ResolvedIndex{}, err
	}
	return ri, nil
}

// Locate переводит мировую точку в чанк и воксель конкретной матрицы без проверки занятости
func (g *Group) Locate(id MatrixID, p mgl64.Vec3) (ResolvedIndex, error) {
	m, err := g.Matrix(id)
	if err != nil {
		return ResolvedIndex{}, err
	}
	key, idx, err := g.locate(m, p)
	if err != nil {
		return ResolvedIndex{}, err
	}
	return ResolvedIndex{Matrix: id, Chunk: key, Voxel: idx}, nil
}
