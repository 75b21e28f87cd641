package detached

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/annel0/voxel-detach/internal/mesh"
	"github.com/annel0/voxel-detach/internal/vec"
	"github.com/annel0/voxel-detach/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_SingleVoxelMatrix(t *testing.T) {
	g := newTestGroup(t, 32)

	low, high := box(32)
	id, err := g.Create(low, high, func(x, y, z int) voxel.Value {
		if x == 0 && y == 0 && z == 0 {
			return 5
		}
		return voxel.Empty
	})
	require.NoError(t, err)

	ri, ok, err := g.GetIndex(mgl64.Vec3{0.5, 0.5, 0.5})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, ri.Matrix)
	assert.Equal(t, voxel.ChunkKey("0|0|0"), ri.Chunk)
	assert.Equal(t, 0, ri.Voxel)

	got, ok, err := g.Resolve(mgl64.Vec3{0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok, err = g.Resolve(mgl64.Vec3{1.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.False(t, ok, "соседний воксель пуст")
}

func TestResolve_DeterministicFirstMatch(t *testing.T) {
	g := newTestGroup(t, 8)
	low, high := box(8)

	first, err := g.Create(low, high, voxel.SolidDensity(1))
	require.NoError(t, err)
	second, err := g.Create(low, high, voxel.SolidDensity(2))
	require.NoError(t, err)

	p := mgl64.Vec3{3.5, 3.5, 3.5}
	for i := 0; i < 20; i++ {
		id, ok, err := g.Resolve(p)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, first, id, "всегда первая по порядку добавления")
	}

	require.NoError(t, g.Remove(first))
	id, ok, err := g.Resolve(p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, id)
}

func TestResolve_RotatedMatrix(t *testing.T) {
	g := newTestGroup(t, 4)
	low, high := box(4)
	id, err := g.Create(low, high, func(x, y, z int) voxel.Value {
		if x == 1 && y == 1 && z == 1 {
			return 9
		}
		return voxel.Empty
	})
	require.NoError(t, err)

	tr := AxisAngle(math.Pi/2, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{5, 0, 0})
	require.NoError(t, g.Move(id, tr))

	v, ok, err := g.GetBlock(tr.Apply(mgl64.Vec3{1.5, 1.5, 1.5}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, voxel.Value(9), v)

	_, ok, err = g.Resolve(mgl64.Vec3{1.5, 1.5, 1.5})
	require.NoError(t, err)
	assert.False(t, ok, "без преобразования точка вне матрицы")
}

func TestResolve_InvalidTransformAborts(t *testing.T) {
	g := newTestGroup(t, 4)
	low, high := box(4)
	id, err := g.Create(low, high, voxel.SolidDensity(1))
	require.NoError(t, err)

	m, err := g.Matrix(id)
	require.NoError(t, err)
	m.SetTransform(Transform{})

	_, _, err = g.Resolve(mgl64.Vec3{0.5, 0.5, 0.5})
	assert.ErrorIs(t, err, ErrInvalidTransform)

	assert.ErrorIs(t, g.Move(id, Transform{}), ErrInvalidTransform)
}

func TestGroup_IDsNeverReused(t *testing.T) {
	g := newTestGroup(t, 4)
	low, high := box(4)

	a, err := g.Create(low, high, nil)
	require.NoError(t, err)
	b, err := g.Create(low, high, nil)
	require.NoError(t, err)
	require.NoError(t, g.Remove(a))

	c, err := g.Create(low, high, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, b, c)
	assert.Equal(t, 2, g.Len())

	_, err = g.Matrix(a)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, g.Remove(a), ErrNotFound)
	assert.ErrorIs(t, g.Move(99, Identity()), ErrNotFound)

	ids := []MatrixID{}
	for _, m := range g.Matrices() {
		ids = append(ids, m.ID())
	}
	assert.Equal(t, []MatrixID{b, c}, ids)
}

func TestGroup_RemoveDropsMeshes(t *testing.T) {
	pub := &recordingPublisher{}
	g := newTestGroup(t, 4, func(o *Options) { o.Publisher = pub })

	id, err := g.Create(vec.Vec3{}, vec.Vec3{X: 8, Y: 4, Z: 4}, voxel.SolidDensity(1))
	require.NoError(t, err)
	assert.Equal(t, 2, g.MeshCount())

	msh, ok := g.Mesh(id, "1|0|0")
	require.True(t, ok)
	owner, ok := g.Owner(msh.ID)
	require.True(t, ok)
	assert.Equal(t, id, owner)

	require.NoError(t, g.Remove(id))
	assert.Equal(t, 0, g.MeshCount())
	_, ok = g.Owner(msh.ID)
	assert.False(t, ok)

	assert.Equal(t, []string{EventMatrixAdded, EventMatrixRemoved}, pub.types())

	var payload MatrixEvent
	require.NoError(t, json.Unmarshal(pub.events[0].Payload, &payload))
	assert.Equal(t, id, payload.Matrix)
	assert.Equal(t, 2, payload.Chunks)
	assert.Equal(t, EventSource, pub.events[0].Source)
	assert.NotEmpty(t, pub.events[0].ID)
}

func TestChunkMatrix_GetSet(t *testing.T) {
	mesher := newCountingMesher()
	g := newTestGroup(t, 4, func(o *Options) { o.Mesher = mesher })
	low, high := box(4)
	id, err := g.Create(low, high, nil)
	require.NoError(t, err)
	m, err := g.Matrix(id)
	require.NoError(t, err)

	_, ok := m.Get("5|5|5", 0)
	assert.False(t, ok, "чанка нет")
	_, ok = m.Get("0|0|0", 64)
	assert.False(t, ok, "индекс вне диапазона")

	require.NoError(t, m.Set("0|0|0", 10, 4))
	v, ok := m.Get("0|0|0", 10)
	require.True(t, ok)
	assert.Equal(t, voxel.Value(4), v)

	// Запись в отсутствующий чанк создаёт его и строит меш
	require.NoError(t, m.Set("-1|0|2", 0, 7))
	ch, ok := m.Chunk("-1|0|2")
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: -1, Y: 0, Z: 2}, ch.Position)
	assert.Equal(t, 1, mesher.calls["-1|0|2"])
	_, ok = g.Mesh(id, "-1|0|2")
	assert.True(t, ok)

	assert.ErrorIs(t, m.Set("0|0|0", 64, 1), ErrOutOfRange)
	assert.ErrorIs(t, m.Set("0|0|0", -1, 1), ErrOutOfRange)
	assert.Error(t, m.Set("мусор", 0, 1))
}

func TestGroup_SetBlockRebuildsOnce(t *testing.T) {
	mesher := newCountingMesher()
	g := newTestGroup(t, 4, func(o *Options) { o.Mesher = mesher })
	low, high := box(4)
	_, err := g.Create(low, high, voxel.SolidDensity(1))
	require.NoError(t, err)
	before := mesher.calls["0|0|0"]

	ri, err := g.SetBlock(mgl64.Vec3{2.5, 2.5, 2.5}, 8)
	require.NoError(t, err)
	assert.Equal(t, voxel.LinearIndex(vec.Vec3{X: 2, Y: 2, Z: 2}, 4), ri.Voxel)
	assert.Equal(t, before+1, mesher.calls["0|0|0"])

	_, err = g.SetBlock(mgl64.Vec3{50, 50, 50}, 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGroup_Detach(t *testing.T) {
	g := newTestGroup(t, 4)
	src := voxel.NewChunk(vec.Vec3{}, 4)
	src.Set(0, 3)

	id, err := g.Detach(NewTransform(mgl64.QuatIdent(), mgl64.Vec3{0, 10, 0}), src)
	require.NoError(t, err)

	src.Set(0, 0)
	v, ok, err := g.GetBlock(mgl64.Vec3{0.5, 10.5, 0.5})
	require.NoError(t, err)
	require.True(t, ok, "матрица хранит копию чанка")
	assert.Equal(t, voxel.Value(3), v)

	_, ok, err = g.Resolve(mgl64.Vec3{0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = g.Detach(Identity())
	assert.Error(t, err)
	_, err = g.Detach(Identity(), voxel.NewChunk(vec.Vec3{}, 8))
	assert.Error(t, err)
	assert.Equal(t, 1, g.Len())
	assert.NotZero(t, id)
}

func TestGroup_SnapshotRestore(t *testing.T) {
	g := newTestGroup(t, 4)
	id, err := g.Create(vec.Vec3{X: -2, Y: 0, Z: 0}, vec.Vec3{X: 2, Y: 2, Z: 2}, voxel.SolidDensity(6))
	require.NoError(t, err)
	tr := AxisAngle(0.3, mgl64.Vec3{0, 0, 1}, mgl64.Vec3{1, 2, 3})
	require.NoError(t, g.Move(id, tr))

	snap, err := g.Snapshot(id)
	require.NoError(t, err)
	require.Len(t, snap.Chunks, 2)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded MatrixSnapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	other := newTestGroup(t, 4)
	restored, err := other.Restore(decoded)
	require.NoError(t, err)

	p := tr.Apply(mgl64.Vec3{-1.5, 0.5, 0.5})
	v, ok, err := other.GetBlock(p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, voxel.Value(6), v)
	assert.Equal(t, voxelsOf(g)[id], voxelsOf(other)[restored])

	decoded.ChunkSize = 8
	_, err = other.Restore(decoded)
	assert.Error(t, err)

	assert.Len(t, g.SnapshotAll(), 1)
}

func TestNewGroup_RejectsEndlessWalk(t *testing.T) {
	_, err := NewGroup(Options{Placement: PlacementConfig{StepFraction: -1}})
	assert.Error(t, err)

	bad := []PlacementConfig{
		{StepFraction: 1e-9},
		{StepFraction: math.NaN()},
		{MaxOffsetCubes: math.Inf(1)},
		{InitialOffset: math.NaN()},
	}
	for _, pc := range bad {
		_, err := NewGroup(Options{Placement: pc})
		assert.Error(t, err, "%+v", pc)
	}

	_, err = NewGroup(Options{Placement: PlacementConfig{StepFraction: MinStepFraction}})
	assert.NoError(t, err, "минимальный шаг допустим")
}

func TestNewGroup_RejectsNonFiniteCube(t *testing.T) {
	for _, cube := range []float64{math.NaN(), math.Inf(1), -1} {
		_, err := NewGroup(Options{CubeSize: cube})
		assert.Error(t, err, "cube=%v", cube)
	}
}

// failingMesher отказывает, пока fail выставлен
type failingMesher struct {
	inner Mesher
	fail  bool
}

func (f *failingMesher) Mesh(ch *voxel.Chunk, scale float64) (*mesh.Mesh, error) {
	if f.fail {
		return nil, errors.New("меш не построен")
	}
	return f.inner.Mesh(ch, scale)
}

func TestChunkMatrix_SetRollsBackOnMeshError(t *testing.T) {
	mesher := &failingMesher{inner: mesh.NewSurfaceMesher(mesh.KindSurface, "")}
	g := newTestGroup(t, 4, func(o *Options) { o.Mesher = mesher })
	low, high := box(4)
	id, err := g.Create(low, high, nil)
	require.NoError(t, err)
	m, err := g.Matrix(id)
	require.NoError(t, err)
	meshBefore, ok := g.Mesh(id, "0|0|0")
	require.True(t, ok)

	mesher.fail = true
	assert.Error(t, m.Set("0|0|0", 10, 4))
	v, ok := m.Get("0|0|0", 10)
	require.True(t, ok)
	assert.Equal(t, voxel.Empty, v, "запись откачена")
	meshAfter, ok := g.Mesh(id, "0|0|0")
	require.True(t, ok)
	assert.Equal(t, meshBefore, meshAfter, "старый меш остался")

	assert.Error(t, m.Set("2|0|0", 0, 7))
	_, ok = m.Chunk("2|0|0")
	assert.False(t, ok, "созданный чанк удалён")
	_, ok = g.Mesh(id, "2|0|0")
	assert.False(t, ok)

	mesher.fail = false
	require.NoError(t, m.Set("0|0|0", 10, 4))
	v, _ = m.Get("0|0|0", 10)
	assert.Equal(t, voxel.Value(4), v)
}
