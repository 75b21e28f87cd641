package detached

import (
	"context"

	"github.com/annel0/voxel-detach/internal/eventbus"
	"github.com/annel0/voxel-detach/internal/mesh"
	"github.com/annel0/voxel-detach/internal/vec"
	"github.com/annel0/voxel-detach/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
)

// Generator заполняет бокс вокселей [low, high) и раскладывает его по чанкам
type Generator interface {
	Generate(low, high vec.Vec3, density voxel.DensityFunc) (voxel.ChunkSet, error)
}

// Mesher строит меш чанка в локальном фрейме матрицы
type Mesher interface {
	Mesh(chunk *voxel.Chunk, scale float64) (*mesh.Mesh, error)
}

// Intersector пересекает мировой луч с мешами
type Intersector interface {
	Intersect(origin, dir mgl64.Vec3, targets []mesh.Target) []mesh.Hit
}

// Publisher подмножество eventbus.EventBus, нужное группе
type Publisher interface {
	Publish(ctx context.Context, ev *eventbus.Envelope) error
}

var (
	_ Generator   = (*voxel.Generator)(nil)
	_ Mesher      = (*mesh.SurfaceMesher)(nil)
	_ Intersector = mesh.BoxIntersector{}
	_ Publisher   = eventbus.EventBus(nil)
)
