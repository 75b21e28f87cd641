package mesh

import (
	"fmt"

	"github.com/annel0/voxel-detach/internal/vec"
	"github.com/annel0/voxel-detach/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
)

// ID идентификатор меша, выдаётся владельцем реестра (не рендерером)
type ID uint64

// Kind вид представления меша
type Kind uint8

const (
	KindSurface Kind = iota // Поверхность с материалом
	KindWire                // Каркас
)

// String возвращает строковое представление вида
func (k Kind) String() string {
	switch k {
	case KindSurface:
		return "surface"
	case KindWire:
		return "wire"
	default:
		return "unknown"
	}
}

// ParseKind разбирает "surface" / "wire"
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "surface":
		return KindSurface, nil
	case "wire", "wireMesh":
		return KindWire, nil
	default:
		return KindSurface, fmt.Errorf("неизвестный вид меша %q", s)
	}
}

// Mesh упрощённое представление чанка: набор поверхностных вокселей.
// Координаты в локальном фрейме матрицы, в мировых единицах.
type Mesh struct {
	ID       ID
	Chunk    voxel.ChunkKey
	Origin   mgl64.Vec3 // Угол чанка (setPosition)
	Scale    float64    // Размер куба
	Cells    []vec.Vec3 // Поверхностные воксели, локальные координаты внутри чанка
	Kind     Kind
	Material string
}

// CellBox возвращает AABB i-го вокселя
func (m *Mesh) CellBox(i int) (min, max mgl64.Vec3) {
	min = m.Origin.Add(m.Cells[i].Float().Mul(m.Scale))
	max = min.Add(mgl64.Vec3{m.Scale, m.Scale, m.Scale})
	return min, max
}

// Empty true если у меша нет геометрии
func (m *Mesh) Empty() bool {
	return len(m.Cells) == 0
}

// SurfaceMesher строит меш из вокселей, у которых есть хотя бы одна пустая соседняя грань.
// Грани на краю чанка считаются открытыми.
type SurfaceMesher struct {
	Kind     Kind
	Material string
}

// NewSurfaceMesher создаёт мешер
func NewSurfaceMesher(kind Kind, material string) *SurfaceMesher {
	return &SurfaceMesher{Kind: kind, Material: material}
}

var faces = [6]vec.Vec3{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// Mesh строит меш чанка
func (sm *SurfaceMesher) Mesh(chunk *voxel.Chunk, scale float64) (*Mesh, error) {
	if chunk == nil {
		return nil, fmt.Errorf("mesh: nil chunk")
	}
	if scale <= 0 {
		return nil, fmt.Errorf("mesh: неверный масштаб %v", scale)
	}

	size := chunk.Dims
	m := &Mesh{
		Chunk:    chunk.Key(),
		Origin:   chunk.Position.Mul(size).Float().Mul(scale),
		Scale:    scale,
		Kind:     sm.Kind,
		Material: sm.Material,
	}

	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				if chunk.At(x, y, z) == voxel.Empty {
					continue
				}
				for _, f := range faces {
					if chunk.At(x+f.X, y+f.Y, z+f.Z) == voxel.Empty {
						m.Cells = append(m.Cells, vec.Vec3{X: x, Y: y, Z: z})
						break
					}
				}
			}
		}
	}

	return m, nil
}
