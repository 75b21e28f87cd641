package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Target меш вместе с преобразованием мир → локальный фрейм его матрицы
type Target struct {
	Mesh    *Mesh
	ToLocal mgl64.Mat4
}

// Hit результат пересечения луча с мешем; Point в мировых координатах
type Hit struct {
	Mesh     *Mesh
	Point    mgl64.Vec3
	Distance float64
}

// BoxIntersector пересекает луч с AABB поверхностных вокселей каждого меша.
// Для каждого меша возвращается ближайшее попадание; порядок результата совпадает с порядком целей.
type BoxIntersector struct {
	MaxDistance float64 // 0: без ограничения
}

// Intersect реализует пересечение луча со списком мешей
func (bi BoxIntersector) Intersect(origin, dir mgl64.Vec3, targets []Target) []Hit {
	length := dir.Len()
	if length == 0 {
		return nil
	}

	var hits []Hit
	for _, tg := range targets {
		if tg.Mesh == nil || tg.Mesh.Empty() {
			continue
		}

		// Аффинное преобразование сохраняет параметр t луча
		lo := tg.ToLocal.Mul4x1(origin.Vec4(1)).Vec3()
		ld := tg.ToLocal.Mul4x1(dir.Vec4(0)).Vec3()

		best := math.Inf(1)
		for i := range tg.Mesh.Cells {
			min, max := tg.Mesh.CellBox(i)
			if t, ok := slab(lo, ld, min, max); ok && t < best {
				best = t
			}
		}
		if math.IsInf(best, 1) {
			continue
		}

		dist := best * length
		if bi.MaxDistance > 0 && dist > bi.MaxDistance {
			continue
		}
		hits = append(hits, Hit{
			Mesh:     tg.Mesh,
			Point:    origin.Add(dir.Mul(best)),
			Distance: dist,
		})
	}
	return hits
}

// slab классический тест луч/AABB; попадания изнутри бокса не считаются
func slab(o, d, min, max mgl64.Vec3) (float64, bool) {
	tmin := math.Inf(-1)
	tmax := math.Inf(1)

	for axis := 0; axis < 3; axis++ {
		if math.Abs(d[axis]) < 1e-12 {
			if o[axis] < min[axis] || o[axis] > max[axis] {
				return 0, false
			}
			continue
		}
		t1 := (min[axis] - o[axis]) / d[axis]
		t2 := (max[axis] - o[axis]) / d[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}

	if tmin < 0 {
		return 0, false
	}
	return tmin, true
}
