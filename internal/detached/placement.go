package detached

import (
	"errors"
	"fmt"
	"math"

	"github.com/annel0/voxel-detach/internal/eventbus"
	"github.com/annel0/voxel-detach/internal/logging"
	"github.com/annel0/voxel-detach/internal/mesh"
	"github.com/annel0/voxel-detach/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
)

// PlacementConfig шаги поиска свободного вокселя вдоль луча, в долях размера куба
type PlacementConfig struct {
	InitialOffset  float64 // Первый отступ от точки попадания назад по лучу
	StepFraction   float64 // Шаг отступа
	MaxOffsetCubes float64 // Предел отступа, после которого поиск прекращается
}

// DefaultPlacementConfig 0.1 куба, шаг 1/8 куба, не дальше 4 кубов
func DefaultPlacementConfig() PlacementConfig {
	return PlacementConfig{
		InitialOffset:  0.1,
		StepFraction:   0.125,
		MaxOffsetCubes: 4,
	}
}

func (c PlacementConfig) withDefaults() PlacementConfig {
	def := DefaultPlacementConfig()
	if c.InitialOffset == 0 {
		c.InitialOffset = def.InitialOffset
	}
	if c.StepFraction == 0 {
		c.StepFraction = def.StepFraction
	}
	if c.MaxOffsetCubes == 0 {
		c.MaxOffsetCubes = def.MaxOffsetCubes
	}
	return c
}

// MinStepFraction наименьший шаг обхода: не больше 4096 шагов на куб
const MinStepFraction = 1.0 / 4096

// Validate проверяет, что обход конечен
func (c PlacementConfig) Validate() error {
	if !finite(c.InitialOffset) || !finite(c.StepFraction) || !finite(c.MaxOffsetCubes) {
		return fmt.Errorf("неверные параметры установки блока: %+v", c)
	}
	if c.InitialOffset < 0 || c.StepFraction < MinStepFraction || c.MaxOffsetCubes < c.InitialOffset {
		return fmt.Errorf("неверные параметры установки блока: %+v", c)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Placement результат поиска места под блок
type Placement struct {
	Matrix MatrixID
	Mesh   mesh.ID
	Chunk  voxel.ChunkKey
	Voxel  int
	Hit    mgl64.Vec3 // Точка попадания, мир
	Point  mgl64.Vec3 // Найденная точка, мир
	Local  mgl64.Vec3 // Найденная точка, локальный фрейм матрицы
	Offset float64
}

// Validator проверяет найденное место до записи. Ошибка отменяет установку.
type Validator func(p Placement) error

// PlaceBlock ставит value в первый пустой воксель перед ближайшим мешем, в который попадает луч
func (g *Group) PlaceBlock(origin, dir mgl64.Vec3, value voxel.Value) (Placement, error) {
	return g.PlaceBlockChecked(origin, dir, value, nil)
}

// PlaceBlockChecked как PlaceBlock, но перед записью вызывает validate
func (g *Group) PlaceBlockChecked(origin, dir mgl64.Vec3, value voxel.Value, validate Validator) (Placement, error) {
	p, err := g.FindPlacement(origin, dir)
	if err != nil {
		g.opts.Metrics.placement(placementResult(err))
		return Placement{}, err
	}

	if validate != nil {
		if err := validate(p); err != nil {
			g.opts.Metrics.placement(placementResult(err))
			return Placement{}, err
		}
	}

	if err := g.slots[p.Matrix-1].Set(p.Chunk, p.Voxel, value); err != nil {
		g.opts.Metrics.placement("error")
		return Placement{}, err
	}

	g.opts.Metrics.placement("placed")
	logging.GetGroupLogger().Debug("🧱 Блок %d установлен: матрица %d, чанк %s, воксель %d", value, p.Matrix, p.Chunk, p.Voxel)
	g.publish(EventBlockPlaced, eventbus.PriorityNormal, BlockPlacedEvent{
		Matrix: p.Matrix,
		Chunk:  string(p.Chunk),
		Voxel:  p.Voxel,
		Value:  uint16(value),
		Hit:    [3]float64(p.Hit),
	})
	return p, nil
}

// FindPlacement ищет место под блок, ничего не изменяя
func (g *Group) FindPlacement(origin, dir mgl64.Vec3) (Placement, error) {
	length := dir.Len()
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return Placement{}, fmt.Errorf("направление %v: %w", dir, ErrInvalidRay)
	}
	dir = dir.Mul(1 / length)

	targets, err := g.targets()
	if err != nil {
		return Placement{}, err
	}
	hits := g.opts.Intersector.Intersect(origin, dir, targets)
	if len(hits) == 0 {
		return Placement{}, ErrNoIntersection
	}

	// Ближайшее попадание; при равенстве первое
	best := hits[0]
	for _, h := range hits[1:] {
		if h.Distance < best.Distance {
			best = h
		}
	}

	owner, ok := g.owners[best.Mesh.ID]
	if !ok {
		return Placement{}, fmt.Errorf("владелец меша %d: %w", best.Mesh.ID, ErrNotFound)
	}
	m, err := g.Matrix(owner.matrix)
	if err != nil {
		return Placement{}, err
	}
	inv, err := m.transform.Inverse()
	if err != nil {
		return Placement{}, fmt.Errorf("матрица %d: %w", m.id, err)
	}

	cfg := g.opts.Placement
	cube := g.opts.CubeSize
	size := g.opts.ChunkSize
	start := cfg.InitialOffset * cube
	step := cfg.StepFraction * cube
	limit := cfg.MaxOffsetCubes * cube

	for i := 0; ; i++ {
		offset := start + float64(i)*step
		if offset > limit {
			break
		}
		pt := best.Point.Sub(dir.Mul(offset))
		local := inv.Mul4x1(pt.Vec4(1)).Vec3()
		key := voxel.KeyOf(voxel.ChunkKeyOf(local, size, cube))
		idx := voxel.VoxelIndexOf(local, size, cube)

		if v, _ := m.Get(key, idx); v == voxel.Empty {
			return Placement{
				Matrix: m.id,
				Mesh:   best.Mesh.ID,
				Chunk:  key,
				Voxel:  idx,
				Hit:    best.Point,
				Point:  pt,
				Local:  local,
				Offset: offset,
			}, nil
		}
	}

	return Placement{}, fmt.Errorf("матрица %d: %w", m.id, ErrNoEmptySlot)
}

// targets все меши живых матриц: матрицы в порядке добавления, чанки по ключу
func (g *Group) targets() ([]mesh.Target, error) {
	var out []mesh.Target
	for _, m := range g.slots {
		if m == nil {
			continue
		}
		inv, err := m.transform.Inverse()
		if err != nil {
			return nil, fmt.Errorf("матрица %d: %w", m.id, err)
		}
		for _, key := range m.ChunkKeys() {
			mid, ok := g.byChunk[m.id][key]
			if !ok {
				continue
			}
			out = append(out, mesh.Target{Mesh: g.meshes[mid], ToLocal: inv})
		}
	}
	return out, nil
}

func placementResult(err error) string {
	switch {
	case errors.Is(err, ErrNoIntersection):
		return "no_intersection"
	case errors.Is(err, ErrNoEmptySlot):
		return "no_slot"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	default:
		return "error"
	}
}
