package voxel

import "github.com/annel0/voxel-detach/internal/vec"

// Value значение вокселя: 0: пусто, иначе ID материала
type Value uint16

// Empty пустой воксель
const Empty Value = 0

// Chunk кубический блок вокселей размером Dims³
type Chunk struct {
	Position vec.Vec3 // Координаты чанка в сетке матрицы
	Dims     int
	Voxels   []Value
}

// ChunkSet набор чанков по ключу
type ChunkSet map[ChunkKey]*Chunk

// NewChunk создаёт пустой (заполненный нулями) чанк
func NewChunk(position vec.Vec3, size int) *Chunk {
	return &Chunk{
		Position: position,
		Dims:     size,
		Voxels:   make([]Value, size*size*size),
	}
}

// Key возвращает ключ чанка
func (c *Chunk) Key() ChunkKey {
	return KeyOf(c.Position)
}

// Get возвращает значение по линейному индексу; false если индекс вне чанка
func (c *Chunk) Get(idx int) (Value, bool) {
	if idx < 0 || idx >= len(c.Voxels) {
		return Empty, false
	}
	return c.Voxels[idx], true
}

// Set записывает значение; false если индекс вне чанка
func (c *Chunk) Set(idx int, v Value) bool {
	if idx < 0 || idx >= len(c.Voxels) {
		return false
	}
	c.Voxels[idx] = v
	return true
}

// At возвращает значение по локальным координатам; вне чанка: Empty
func (c *Chunk) At(x, y, z int) Value {
	if x < 0 || y < 0 || z < 0 || x >= c.Dims || y >= c.Dims || z >= c.Dims {
		return Empty
	}
	return c.Voxels[x+y*c.Dims+z*c.Dims*c.Dims]
}

// Count возвращает число непустых вокселей
func (c *Chunk) Count() int {
	n := 0
	for _, v := range c.Voxels {
		if v != Empty {
			n++
		}
	}
	return n
}

// Clone делает глубокую копию
func (c *Chunk) Clone() *Chunk {
	out := &Chunk{Position: c.Position, Dims: c.Dims, Voxels: make([]Value, len(c.Voxels))}
	copy(out.Voxels, c.Voxels)
	return out
}
