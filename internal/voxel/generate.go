package voxel

import (
	"errors"
	"fmt"

	"github.com/annel0/voxel-detach/internal/vec"
)

// DensityFunc возвращает значение вокселя по его координатам в сетке
type DensityFunc func(x, y, z int) Value

// DefaultMaxVolume предел объёма бокса генерации по умолчанию: 128³ вокселей
const DefaultMaxVolume int64 = 128 * 128 * 128

// ErrTooLarge бокс генерации превышает MaxVolume
var ErrTooLarge = errors.New("бокс генерации слишком велик")

// Generator заполняет воксельный бокс чанками заданного размера
type Generator struct {
	ChunkSize int
	MaxVolume int64 // <= 0: без ограничения
}

// NewGenerator создаёт генератор; размер чанка по умолчанию 32, объём не больше DefaultMaxVolume
func NewGenerator(chunkSize int) *Generator {
	if chunkSize <= 0 {
		chunkSize = 32
	}
	return &Generator{ChunkSize: chunkSize, MaxVolume: DefaultMaxVolume}
}

// Generate вычисляет density для каждого вокселя бокса [low, high) и раскладывает
// результат по чанкам. Все чанки, пересекающие бокс, создаются даже если пусты.
func (g *Generator) Generate(low, high vec.Vec3, density DensityFunc) (ChunkSet, error) {
	if high.X <= low.X || high.Y <= low.Y || high.Z <= low.Z {
		return nil, fmt.Errorf("пустой бокс генерации: low=%v high=%v", low, high)
	}
	if g.MaxVolume > 0 {
		// Объём в float64: разность крайних int может переполниться
		volume := (float64(high.X) - float64(low.X)) *
			(float64(high.Y) - float64(low.Y)) *
			(float64(high.Z) - float64(low.Z))
		if volume > float64(g.MaxVolume) {
			return nil, fmt.Errorf("low=%v high=%v, объём %.0f > %d: %w", low, high, volume, g.MaxVolume, ErrTooLarge)
		}
	}
	if density == nil {
		density = EmptyDensity
	}

	size := g.ChunkSize
	set := make(ChunkSet)

	minC := vec.Vec3{X: floorDiv(low.X, size), Y: floorDiv(low.Y, size), Z: floorDiv(low.Z, size)}
	maxC := vec.Vec3{X: floorDiv(high.X-1, size), Y: floorDiv(high.Y-1, size), Z: floorDiv(high.Z-1, size)}
	for cz := minC.Z; cz <= maxC.Z; cz++ {
		for cy := minC.Y; cy <= maxC.Y; cy++ {
			for cx := minC.X; cx <= maxC.X; cx++ {
				ch := NewChunk(vec.Vec3{X: cx, Y: cy, Z: cz}, size)
				set[ch.Key()] = ch
			}
		}
	}

	for z := low.Z; z < high.Z; z++ {
		for y := low.Y; y < high.Y; y++ {
			for x := low.X; x < high.X; x++ {
				v := density(x, y, z)
				if v == Empty {
					continue
				}
				key := KeyOf(vec.Vec3{X: floorDiv(x, size), Y: floorDiv(y, size), Z: floorDiv(z, size)})
				local := vec.Vec3{X: wrap(x, size), Y: wrap(y, size), Z: wrap(z, size)}
				set[key].Voxels[LinearIndex(local, size)] = v
			}
		}
	}

	return set, nil
}
