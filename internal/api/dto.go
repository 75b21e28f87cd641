package api

import (
	"fmt"

	"github.com/annel0/voxel-detach/internal/detached"
	"github.com/annel0/voxel-detach/internal/physics"
	"github.com/annel0/voxel-detach/internal/vec"
	"github.com/annel0/voxel-detach/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
)

// GenericResponse общий конверт ответа
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// DensityRequest описание функции плотности для генерации матрицы
type DensityRequest struct {
	Kind      string  `json:"kind"` // empty | solid | sphere | perlin
	Material  uint16  `json:"material"`
	Center    [3]int  `json:"center"`
	Radius    int     `json:"radius"`
	Seed      int64   `json:"seed"`
	Scale     float64 `json:"scale"`
	Threshold float64 `json:"threshold"`
}

// Func собирает voxel.DensityFunc
func (d DensityRequest) Func() (voxel.DensityFunc, error) {
	material := voxel.Value(d.Material)
	if material == voxel.Empty {
		material = 1
	}
	switch d.Kind {
	case "", "empty":
		return voxel.EmptyDensity, nil
	case "solid":
		return voxel.SolidDensity(material), nil
	case "sphere":
		if d.Radius <= 0 {
			return nil, fmt.Errorf("sphere: radius должен быть > 0")
		}
		return voxel.SphereDensity(toVec(d.Center), d.Radius, material), nil
	case "perlin":
		scale := d.Scale
		if scale == 0 {
			scale = 0.1
		}
		return voxel.NewPerlinDensity(d.Seed, scale, d.Threshold, material).Func(), nil
	default:
		return nil, fmt.Errorf("неизвестная плотность %q", d.Kind)
	}
}

// CreateMatrixRequest тело POST /api/matrices
type CreateMatrixRequest struct {
	Low     [3]int         `json:"low"`
	High    [3]int         `json:"high" binding:"required"`
	Density DensityRequest `json:"density"`
}

// TransformRequest тело PUT /api/matrices/:id/transform.
// Поворот задаётся осью и углом в радианах; нулевая ось означает отсутствие поворота.
type TransformRequest struct {
	Translation [3]float64 `json:"translation"`
	Axis        [3]float64 `json:"axis"`
	Angle       float64    `json:"angle"`
}

// Transform собирает detached.Transform
func (r TransformRequest) Transform() detached.Transform {
	axis := mgl64.Vec3(r.Axis)
	if axis.Len() == 0 || r.Angle == 0 {
		return detached.Transform{Rotation: mgl64.Ident3(), Translation: mgl64.Vec3(r.Translation)}
	}
	return detached.AxisAngle(r.Angle, axis, mgl64.Vec3(r.Translation))
}

// PointRequest тело POST /api/resolve и /api/collisions
type PointRequest struct {
	Point [3]float64 `json:"point"`
}

// PlaceRequest тело POST /api/place. Если Player задан, место проверяется на пересечение с игроком.
type PlaceRequest struct {
	Origin    [3]float64  `json:"origin"`
	Direction [3]float64  `json:"direction"`
	Value     uint16      `json:"value" binding:"required"`
	Player    *[3]float64 `json:"player,omitempty"`
}

// MatrixView описание матрицы в ответах
type MatrixView struct {
	ID          detached.MatrixID `json:"id"`
	Chunks      []string          `json:"chunks"`
	Voxels      int               `json:"voxels"`
	Translation [3]float64        `json:"translation"`
	Rotation    [9]float64        `json:"rotation"`
}

func viewOf(m *detached.ChunkMatrix) MatrixView {
	v := MatrixView{
		ID:          m.ID(),
		Translation: [3]float64(m.Transform().Translation),
		Rotation:    [9]float64(m.Transform().Rotation),
	}
	for _, key := range m.ChunkKeys() {
		v.Chunks = append(v.Chunks, string(key))
		if ch, ok := m.Chunk(key); ok {
			v.Voxels += ch.Count()
		}
	}
	return v
}

// ResolveView ответ POST /api/resolve
type ResolveView struct {
	Found  bool              `json:"found"`
	Matrix detached.MatrixID `json:"matrix,omitempty"`
	Chunk  string            `json:"chunk,omitempty"`
	Voxel  int               `json:"voxel"`
	Value  uint16            `json:"value"`
}

// PlacementView ответ POST /api/place
type PlacementView struct {
	Matrix detached.MatrixID `json:"matrix"`
	Chunk  string            `json:"chunk"`
	Voxel  int               `json:"voxel"`
	Hit    [3]float64        `json:"hit"`
	Point  [3]float64        `json:"point"`
	Offset float64           `json:"offset"`
}

// CollisionsView ответ POST /api/collisions
type CollisionsView struct {
	Top     int             `json:"top"`
	Bottom  int             `json:"bottom"`
	Left    int             `json:"left"`
	Right   int             `json:"right"`
	Forward int             `json:"forward"`
	Back    int             `json:"back"`
	Middle  int             `json:"middle"`
	Freedom physics.Freedom `json:"freedom"`
}

func toVec(a [3]int) vec.Vec3 {
	return vec.Vec3{X: a[0], Y: a[1], Z: a[2]}
}
