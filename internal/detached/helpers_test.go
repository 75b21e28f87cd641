package detached

import (
	"context"
	"sync"
	"testing"

	"github.com/annel0/voxel-detach/internal/eventbus"
	"github.com/annel0/voxel-detach/internal/mesh"
	"github.com/annel0/voxel-detach/internal/vec"
	"github.com/annel0/voxel-detach/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

// countingMesher считает пересборки по чанкам
type countingMesher struct {
	inner Mesher
	calls map[voxel.ChunkKey]int
}

func newCountingMesher() *countingMesher {
	return &countingMesher{
		inner: mesh.NewSurfaceMesher(mesh.KindSurface, "stone"),
		calls: make(map[voxel.ChunkKey]int),
	}
}

func (c *countingMesher) Mesh(ch *voxel.Chunk, scale float64) (*mesh.Mesh, error) {
	c.calls[ch.Key()]++
	return c.inner.Mesh(ch, scale)
}

// recordingPublisher запоминает опубликованные события
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventbus.Envelope
}

func (r *recordingPublisher) Publish(_ context.Context, ev *eventbus.Envelope) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

// fixedIntersector возвращает заранее заданную точку попадания по первому мешу каждой матрицы
type fixedIntersector struct {
	point    mgl64.Vec3
	distance float64
}

func (f fixedIntersector) Intersect(_, _ mgl64.Vec3, targets []mesh.Target) []mesh.Hit {
	var hits []mesh.Hit
	for _, tg := range targets {
		hits = append(hits, mesh.Hit{Mesh: tg.Mesh, Point: f.point, Distance: f.distance})
	}
	return hits
}

func newTestGroup(t *testing.T, chunkSize int, opts ...func(*Options)) *Group {
	t.Helper()
	o := Options{ChunkSize: chunkSize, CubeSize: 1, Generator: voxel.NewGenerator(chunkSize)}
	for _, fn := range opts {
		fn(&o)
	}
	g, err := NewGroup(o)
	require.NoError(t, err)
	return g
}

func box(n int) (vec.Vec3, vec.Vec3) {
	return vec.Vec3{}, vec.Vec3{X: n, Y: n, Z: n}
}

// voxelsOf копирует все воксели группы для сравнения до/после
func voxelsOf(g *Group) map[MatrixID]map[voxel.ChunkKey][]voxel.Value {
	out := make(map[MatrixID]map[voxel.ChunkKey][]voxel.Value)
	for _, m := range g.Matrices() {
		out[m.ID()] = make(map[voxel.ChunkKey][]voxel.Value)
		for _, key := range m.ChunkKeys() {
			ch, _ := m.Chunk(key)
			out[m.ID()][key] = append([]voxel.Value(nil), ch.Voxels...)
		}
	}
	return out
}
