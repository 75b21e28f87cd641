package voxel

import (
	"math"

	"github.com/annel0/voxel-detach/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

// ChunkKey строковый ключ чанка вида "cx|cy|cz"
type ChunkKey string

// KeyOf кодирует координаты чанка в ключ
func KeyOf(c vec.Vec3) ChunkKey {
	return ChunkKey(c.Key())
}

// Coords декодирует ключ обратно в координаты чанка
func (k ChunkKey) Coords() (vec.Vec3, error) {
	return vec.ParseKey(string(k))
}

// ChunkKeyOf возвращает координаты чанка, содержащего точку p.
// Точка задаётся в мировых единицах той системы координат, в которой лежит сетка
// (для отсоединённой матрицы это её локальный фрейм).
func ChunkKeyOf(p mgl64.Vec3, chunkSize int, cubeSize float64) vec.Vec3 {
	span := cubeSize * float64(chunkSize)
	return vec.Vec3{
		X: int(math.Floor(p.X() / span)),
		Y: int(math.Floor(p.Y() / span)),
		Z: int(math.Floor(p.Z() / span)),
	}
}

// VoxelVector возвращает координаты вокселя внутри чанка, каждая в [0, chunkSize)
func VoxelVector(p mgl64.Vec3, chunkSize int, cubeSize float64) vec.Vec3 {
	return vec.Vec3{
		X: wrap(int(math.Floor(p.X()/cubeSize)), chunkSize),
		Y: wrap(int(math.Floor(p.Y()/cubeSize)), chunkSize),
		Z: wrap(int(math.Floor(p.Z()/cubeSize)), chunkSize),
	}
}

// VoxelIndexOf возвращает линейный индекс вокселя внутри чанка для точки p.
// Должен вычисляться в том же фрейме, что и ChunkKeyOf.
func VoxelIndexOf(p mgl64.Vec3, chunkSize int, cubeSize float64) int {
	return LinearIndex(VoxelVector(p, chunkSize, cubeSize), chunkSize)
}

// LinearIndex: x + y*size + z*size*size
func LinearIndex(v vec.Vec3, size int) int {
	return v.X + v.Y*size + v.Z*size*size
}

// IndexToVector обратная к LinearIndex
func IndexToVector(idx, size int) vec.Vec3 {
	return vec.Vec3{
		X: idx % size,
		Y: (idx / size) % size,
		Z: idx / (size * size),
	}
}

// Bounds возвращает воксельные границы чанка: low включительно, high исключительно
func Bounds(chunk vec.Vec3, chunkSize int) (low, high vec.Vec3) {
	low = chunk.Mul(chunkSize)
	high = low.Add(vec.Vec3{X: chunkSize, Y: chunkSize, Z: chunkSize})
	return low, high
}

// WorldBounds возвращает границы чанка в мировых единицах
func WorldBounds(chunk vec.Vec3, chunkSize int, cubeSize float64) (min, max mgl64.Vec3) {
	low, high := Bounds(chunk, chunkSize)
	return low.Float().Mul(cubeSize), high.Float().Mul(cubeSize)
}

// VoxelOrigin возвращает мировую позицию угла вокселя (chunk, local)
func VoxelOrigin(chunk, local vec.Vec3, chunkSize int, cubeSize float64) mgl64.Vec3 {
	return chunk.Mul(chunkSize).Add(local).Float().Mul(cubeSize)
}

// floorDiv делит с округлением вниз, b > 0
func floorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

// wrap приводит остаток к [0, size) и для отрицательных значений
func wrap(raw, size int) int {
	return (size + raw%size) % size
}
