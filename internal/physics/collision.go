package physics

import (
	"fmt"

	"github.com/annel0/voxel-detach/internal/detached"
	"github.com/go-gl/mathgl/mgl64"
)

// BoxCollider представляет прямоугольный коллайдер, позиция задаёт его центр
type BoxCollider struct {
	Width  float64 // По X
	Height float64 // По Y
	Depth  float64 // По Z
}

// NewBoxCollider создаёт новый коллайдер с указанными размерами
func NewBoxCollider(width, height, depth float64) *BoxCollider {
	return &BoxCollider{
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// PlayerCollider коллайдер игрока: полкуба в ширину и глубину, полтора куба в высоту
func PlayerCollider(cubeSize float64) *BoxCollider {
	return NewBoxCollider(cubeSize/2, cubeSize*1.5, cubeSize/2)
}

func (bc *BoxCollider) half() mgl64.Vec3 {
	return mgl64.Vec3{bc.Width / 2, bc.Height / 2, bc.Depth / 2}
}

// IsPointInside проверяет, находится ли точка внутри коллайдера
func (bc *BoxCollider) IsPointInside(colliderPos, point mgl64.Vec3) bool {
	h := bc.half()
	for i := 0; i < 3; i++ {
		if point[i] < colliderPos[i]-h[i] || point[i] >= colliderPos[i]+h[i] {
			return false
		}
	}
	return true
}

// CheckBoxCollision проверяет пересечение двух коллайдеров
func CheckBoxCollision(pos1 mgl64.Vec3, collider1 *BoxCollider, pos2 mgl64.Vec3, collider2 *BoxCollider) bool {
	h1, h2 := collider1.half(), collider2.half()
	for i := 0; i < 3; i++ {
		if pos1[i]+h1[i] <= pos2[i]-h2[i] || pos1[i]-h1[i] >= pos2[i]+h2[i] {
			return false
		}
	}
	return true
}

// Collisions точки коллайдера, попавшие в занятые воксели, по граням.
// Right это грань +X, Left это -X, Forward это -Z, Back это +Z.
type Collisions struct {
	Top     []mgl64.Vec3
	Bottom  []mgl64.Vec3
	Left    []mgl64.Vec3
	Right   []mgl64.Vec3
	Forward []mgl64.Vec3
	Back    []mgl64.Vec3
	Middle  []mgl64.Vec3
}

// Any true если есть хотя бы одно касание
func (c Collisions) Any() bool {
	return len(c.Top)+len(c.Bottom)+len(c.Left)+len(c.Right)+len(c.Forward)+len(c.Back)+len(c.Middle) > 0
}

// inset отступ угловых точек внутрь грани, чтобы касание соседней грани не засчитывалось дважды
const inset = 1e-3

// GetCollisionPoints возвращает точки проверки по граням коллайдера.
// Верх и низ: четыре угла и центр грани. Боковые грани и середина: три точки по вертикали.
func GetCollisionPoints(pos mgl64.Vec3, collider *BoxCollider) Collisions {
	h := collider.half()
	x, y, z := pos.X(), pos.Y(), pos.Z()
	cw, cd := h.X()-inset, h.Z()-inset

	face := func(fy float64) []mgl64.Vec3 {
		return []mgl64.Vec3{
			{x - cw, fy, z - cd},
			{x + cw, fy, z - cd},
			{x - cw, fy, z + cd},
			{x + cw, fy, z + cd},
			{x, fy, z},
		}
	}
	column := func(cx, cz float64) []mgl64.Vec3 {
		return []mgl64.Vec3{
			{cx, y - h.Y()/2, cz},
			{cx, y, cz},
			{cx, y + h.Y()/2, cz},
		}
	}

	return Collisions{
		Top:     face(y + h.Y()),
		Bottom:  face(y - h.Y()),
		Left:    column(x-h.X(), z),
		Right:   column(x+h.X(), z),
		Forward: column(x, z-h.Z()),
		Back:    column(x, z+h.Z()),
		Middle:  column(x, z),
	}
}

// Checker сообщает, считается ли точка занятой
type Checker func(p mgl64.Vec3) (bool, error)

// GetCollisions оставляет только точки, которые checker считает занятыми
func GetCollisions(pos mgl64.Vec3, collider *BoxCollider, check Checker) (Collisions, error) {
	points := GetCollisionPoints(pos, collider)

	filter := func(in []mgl64.Vec3) ([]mgl64.Vec3, error) {
		var out []mgl64.Vec3
		for _, p := range in {
			hit, err := check(p)
			if err != nil {
				return nil, err
			}
			if hit {
				out = append(out, p)
			}
		}
		return out, nil
	}

	var (
		cs  Collisions
		err error
	)
	faces := []struct {
		dst *[]mgl64.Vec3
		src []mgl64.Vec3
	}{
		{&cs.Top, points.Top},
		{&cs.Bottom, points.Bottom},
		{&cs.Left, points.Left},
		{&cs.Right, points.Right},
		{&cs.Forward, points.Forward},
		{&cs.Back, points.Back},
		{&cs.Middle, points.Middle},
	}
	for _, f := range faces {
		if *f.dst, err = filter(f.src); err != nil {
			return Collisions{}, err
		}
	}
	return cs, nil
}

// CanMoveToPosition проверяет, может ли сущность с указанным коллайдером переместиться в указанную позицию
func CanMoveToPosition(newPos mgl64.Vec3, collider *BoxCollider, check Checker) (bool, error) {
	cs, err := GetCollisions(newPos, collider, check)
	if err != nil {
		return false, err
	}
	return !cs.Any(), nil
}

// Query коллизионные запросы к группе отсоединённых матриц
type Query struct {
	group *detached.Group
}

// NewQuery создаёт запрос поверх группы
func NewQuery(g *detached.Group) *Query {
	return &Query{group: g}
}

// Solid true если точка занята вокселем любой матрицы
func (q *Query) Solid(p mgl64.Vec3) (bool, error) {
	_, ok, err := q.group.GetBlock(p)
	return ok, err
}

// GetCollisions касания коллайдера с вокселями матриц
func (q *Query) GetCollisions(pos mgl64.Vec3, collider *BoxCollider) (Collisions, error) {
	return GetCollisions(pos, collider, q.Solid)
}

// PlacementGuard запрещает ставить блок туда, где стоит игрок: касание верхом или серединой,
// либо больше двух точек низа в целевом вокселе
func (q *Query) PlacementGuard(pos mgl64.Vec3, collider *BoxCollider) detached.Validator {
	return func(p detached.Placement) error {
		inTarget := func(pt mgl64.Vec3) (bool, error) {
			ri, err := q.group.Locate(p.Matrix, pt)
			if err != nil {
				return false, err
			}
			return ri.Chunk == p.Chunk && ri.Voxel == p.Voxel, nil
		}

		cs, err := GetCollisions(pos, collider, inTarget)
		if err != nil {
			return err
		}
		if len(cs.Top) > 0 || len(cs.Middle) > 0 || len(cs.Bottom) > 2 {
			return fmt.Errorf("матрица %d, чанк %s, воксель %d: %w", p.Matrix, p.Chunk, p.Voxel, detached.ErrBlocked)
		}
		return nil
	}
}
