package voxel

import (
	"math"

	"github.com/annel0/voxel-detach/internal/vec"
	"github.com/aquilax/go-perlin"
)

// EmptyDensity всё пусто
func EmptyDensity(x, y, z int) Value { return Empty }

// SolidDensity заполняет весь бокс одним материалом
func SolidDensity(material Value) DensityFunc {
	return func(x, y, z int) Value { return material }
}

// SphereDensity заполняет шар радиуса radius вокруг center
func SphereDensity(center vec.Vec3, radius int, material Value) DensityFunc {
	r2 := radius * radius
	return func(x, y, z int) Value {
		dx, dy, dz := x-center.X, y-center.Y, z-center.Z
		if dx*dx+dy*dy+dz*dz <= r2 {
			return material
		}
		return Empty
	}
}

// PerlinDensity шумовая плотность: воксель заполнен, если нормированный шум выше порога
type PerlinDensity struct {
	noise     *perlin.Perlin
	Scale     float64 // Масштаб координат шума
	Threshold float64 // Порог в диапазоне [0, 1]
	Material  Value
}

// NewPerlinDensity создаёт шумовую плотность с указанным сидом
func NewPerlinDensity(seed int64, scale, threshold float64, material Value) *PerlinDensity {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	if scale <= 0 {
		scale = 0.1
	}
	return &PerlinDensity{
		noise:     perlin.NewPerlin(alpha, beta, n, seed),
		Scale:     scale,
		Threshold: threshold,
		Material:  material,
	}
}

// Sample возвращает шум в диапазоне от 0 до 1
func (d *PerlinDensity) Sample(x, y, z int) float64 {
	n := d.noise.Noise3D(float64(x)*d.Scale, float64(y)*d.Scale, float64(z)*d.Scale)
	// Сумма октав может выйти за [-1, 1]
	return math.Max(0, math.Min(1, (n+1.0)/2.0))
}

// Func адаптирует плотность к DensityFunc
func (d *PerlinDensity) Func() DensityFunc {
	return func(x, y, z int) Value {
		if d.Sample(x, y, z) > d.Threshold {
			return d.Material
		}
		return Empty
	}
}
