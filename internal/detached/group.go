package detached

import (
	"fmt"

	"github.com/annel0/voxel-detach/internal/eventbus"
	"github.com/annel0/voxel-detach/internal/logging"
	"github.com/annel0/voxel-detach/internal/mesh"
	"github.com/annel0/voxel-detach/internal/vec"
	"github.com/annel0/voxel-detach/internal/voxel"
)

// Options параметры группы. Нулевые поля заменяются значениями по умолчанию.
type Options struct {
	ChunkSize int     // Длина ребра чанка в вокселях
	CubeSize  float64 // Размер вокселя в мировых единицах

	Placement PlacementConfig

	Generator   Generator
	Mesher      Mesher
	Intersector Intersector
	Publisher   Publisher // Может быть nil
	Metrics     *Metrics  // Может быть nil
}

// DefaultOptions возвращает настройки по умолчанию со стандартными коллабораторами
func DefaultOptions() Options {
	return Options{
		ChunkSize:   32,
		CubeSize:    1,
		Placement:   DefaultPlacementConfig(),
		Generator:   voxel.NewGenerator(32),
		Mesher:      mesh.NewSurfaceMesher(mesh.KindSurface, ""),
		Intersector: mesh.BoxIntersector{},
	}
}

// chunkMesh текущий меш чанка матрицы
type chunkMesh struct {
	matrix MatrixID
	chunk  voxel.ChunkKey
}

// Group реестр матриц чанков: арена матриц, меши и обратная таблица меш → матрица.
// Group не потокобезопасна; асинхронные обёртки сериализуют вызовы сами.
type Group struct {
	opts Options

	slots []*ChunkMatrix // nil: удалённая матрица, id = индекс + 1
	live  int

	nextMesh mesh.ID
	meshes   map[mesh.ID]*mesh.Mesh
	owners   map[mesh.ID]chunkMesh
	byChunk  map[MatrixID]map[voxel.ChunkKey]mesh.ID
}

// NewGroup создаёт пустую группу
func NewGroup(opts Options) (*Group, error) {
	def := DefaultOptions()
	if opts.ChunkSize == 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.CubeSize == 0 {
		opts.CubeSize = def.CubeSize
	}
	if opts.ChunkSize < 0 || !finite(opts.CubeSize) || opts.CubeSize < 0 {
		return nil, fmt.Errorf("неверные размеры: chunk=%d cube=%v", opts.ChunkSize, opts.CubeSize)
	}
	opts.Placement = opts.Placement.withDefaults()
	if err := opts.Placement.Validate(); err != nil {
		return nil, err
	}
	if opts.Generator == nil {
		opts.Generator = voxel.NewGenerator(opts.ChunkSize)
	}
	if opts.Mesher == nil {
		opts.Mesher = def.Mesher
	}
	if opts.Intersector == nil {
		opts.Intersector = def.Intersector
	}

	return &Group{
		opts:    opts,
		meshes:  make(map[mesh.ID]*mesh.Mesh),
		owners:  make(map[mesh.ID]chunkMesh),
		byChunk: make(map[MatrixID]map[voxel.ChunkKey]mesh.ID),
	}, nil
}

// ChunkSize длина ребра чанка
func (g *Group) ChunkSize() int { return g.opts.ChunkSize }

// CubeSize размер вокселя
func (g *Group) CubeSize() float64 { return g.opts.CubeSize }

// Create генерирует новую матрицу над боксом [low, high) с тождественным преобразованием
func (g *Group) Create(low, high vec.Vec3, density voxel.DensityFunc) (MatrixID, error) {
	chunks, err := g.opts.Generator.Generate(low, high, density)
	if err != nil {
		return 0, fmt.Errorf("генерация матрицы: %w", err)
	}
	for key, ch := range chunks {
		if ch.Dims != g.opts.ChunkSize {
			return 0, fmt.Errorf("чанк %s: размер %d, ожидался %d", key, ch.Dims, g.opts.ChunkSize)
		}
	}
	return g.add(chunks, Identity())
}

// Detach отделяет копии чанков основного мира в новую матрицу с преобразованием t
func (g *Group) Detach(t Transform, chunks ...*voxel.Chunk) (MatrixID, error) {
	if len(chunks) == 0 {
		return 0, fmt.Errorf("detach: нет чанков")
	}
	if err := t.Validate(); err != nil {
		return 0, err
	}

	set := make(voxel.ChunkSet, len(chunks))
	for _, ch := range chunks {
		if ch == nil || ch.Dims != g.opts.ChunkSize {
			return 0, fmt.Errorf("detach: чанк не подходит по размеру (%d)", g.opts.ChunkSize)
		}
		set[ch.Key()] = ch.Clone()
	}
	return g.add(set, t)
}

func (g *Group) add(chunks voxel.ChunkSet, t Transform) (MatrixID, error) {
	id := MatrixID(len(g.slots) + 1)
	m := newChunkMatrix(id, g.opts.ChunkSize, chunks)
	m.transform = t

	g.byChunk[id] = make(map[voxel.ChunkKey]mesh.ID, len(chunks))
	for _, key := range m.ChunkKeys() {
		if err := g.rebuild(m, key); err != nil {
			g.dropMeshes(id)
			return 0, err
		}
	}

	m.onChange = g.rebuild
	g.slots = append(g.slots, m)
	g.live++
	g.opts.Metrics.setMatrices(g.live)

	logging.GetGroupLogger().Debug("🧊 Матрица %d создана: %d чанков", id, len(chunks))
	g.publish(EventMatrixAdded, eventbus.PriorityHigh, MatrixEvent{Matrix: id, Chunks: len(chunks)})
	return id, nil
}

// Remove удаляет матрицу вместе с её мешами. Id не переиспользуется.
func (g *Group) Remove(id MatrixID) error {
	m, err := g.Matrix(id)
	if err != nil {
		return err
	}

	g.dropMeshes(id)
	m.onChange = nil
	g.slots[id-1] = nil
	g.live--
	g.opts.Metrics.setMatrices(g.live)

	logging.GetGroupLogger().Debug("🗑️ Матрица %d удалена", id)
	g.publish(EventMatrixRemoved, eventbus.PriorityHigh, MatrixEvent{Matrix: id})
	return nil
}

// Move задаёт новое преобразование матрицы
func (g *Group) Move(id MatrixID, t Transform) error {
	m, err := g.Matrix(id)
	if err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("матрица %d: %w", id, err)
	}
	m.SetTransform(t)
	g.publish(EventMatrixMoved, eventbus.PriorityLow, MatrixEvent{Matrix: id})
	return nil
}

// Matrix возвращает живую матрицу по id
func (g *Group) Matrix(id MatrixID) (*ChunkMatrix, error) {
	if id == 0 || int(id) > len(g.slots) || g.slots[id-1] == nil {
		return nil, fmt.Errorf("матрица %d: %w", id, ErrNotFound)
	}
	return g.slots[id-1], nil
}

// Matrices живые матрицы в порядке добавления
func (g *Group) Matrices() []*ChunkMatrix {
	out := make([]*ChunkMatrix, 0, g.live)
	for _, m := range g.slots {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Len количество живых матриц
func (g *Group) Len() int { return g.live }

// Mesh текущий меш чанка матрицы
func (g *Group) Mesh(id MatrixID, key voxel.ChunkKey) (*mesh.Mesh, bool) {
	mid, ok := g.byChunk[id][key]
	if !ok {
		return nil, false
	}
	return g.meshes[mid], true
}

// Owner матрица, которой принадлежит меш
func (g *Group) Owner(id mesh.ID) (MatrixID, bool) {
	o, ok := g.owners[id]
	return o.matrix, ok
}

// MeshCount количество зарегистрированных мешей
func (g *Group) MeshCount() int { return len(g.meshes) }

// rebuild пересобирает меш чанка и заменяет старый в реестре
func (g *Group) rebuild(m *ChunkMatrix, key voxel.ChunkKey) error {
	ch, ok := m.chunks[key]
	if !ok {
		return fmt.Errorf("матрица %d: чанк %s: %w", m.id, key, ErrNotFound)
	}

	msh, err := g.opts.Mesher.Mesh(ch, g.opts.CubeSize)
	if err != nil {
		return fmt.Errorf("меш матрицы %d, чанк %s: %w", m.id, key, err)
	}

	if old, ok := g.byChunk[m.id][key]; ok {
		delete(g.meshes, old)
		delete(g.owners, old)
	}

	g.nextMesh++
	msh.ID = g.nextMesh
	g.meshes[msh.ID] = msh
	g.owners[msh.ID] = chunkMesh{matrix: m.id, chunk: key}
	g.byChunk[m.id][key] = msh.ID

	g.opts.Metrics.meshRebuilt()
	return nil
}

func (g *Group) dropMeshes(id MatrixID) {
	for _, mid := range g.byChunk[id] {
		delete(g.meshes, mid)
		delete(g.owners, mid)
	}
	delete(g.byChunk, id)
}
