package detached

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// detEpsilon порог вырожденности матрицы поворота
const detEpsilon = 1e-9

// Transform жёсткое преобразование матрицы чанков: мир = T · R · локаль.
// Нулевое значение означает отсутствие преобразования и не обратимо.
type Transform struct {
	Rotation    mgl64.Mat3
	Translation mgl64.Vec3
}

// Identity возвращает тождественное преобразование
func Identity() Transform {
	return Transform{Rotation: mgl64.Ident3()}
}

// NewTransform собирает преобразование из кватерниона и сдвига
func NewTransform(rotation mgl64.Quat, translation mgl64.Vec3) Transform {
	return Transform{
		Rotation:    rotation.Normalize().Mat4().Mat3(),
		Translation: translation,
	}
}

// AxisAngle поворот на angle радиан вокруг оси axis со сдвигом translation
func AxisAngle(angle float64, axis, translation mgl64.Vec3) Transform {
	return NewTransform(mgl64.QuatRotate(angle, axis.Normalize()), translation)
}

// Matrix возвращает T · R
func (t Transform) Matrix() mgl64.Mat4 {
	return mgl64.Translate3D(t.Translation.X(), t.Translation.Y(), t.Translation.Z()).Mul4(t.Rotation.Mat4())
}

// Apply переводит локальную точку в мировую
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Mul3x1(p).Add(t.Translation)
}

// Validate проверяет, что преобразование конечно и обратимо
func (t Transform) Validate() error {
	for _, v := range t.Rotation {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("поворот содержит %v: %w", v, ErrInvalidTransform)
		}
	}
	for _, v := range t.Translation {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("сдвиг содержит %v: %w", v, ErrInvalidTransform)
		}
	}
	if math.Abs(t.Rotation.Det()) < detEpsilon {
		return fmt.Errorf("вырожденный поворот: %w", ErrInvalidTransform)
	}
	return nil
}

// Inverse возвращает R⁻¹ · T⁻¹ (мир → локальный фрейм матрицы)
func (t Transform) Inverse() (mgl64.Mat4, error) {
	if err := t.Validate(); err != nil {
		return mgl64.Mat4{}, err
	}
	rInv := t.Rotation.Inv().Mat4()
	tInv := mgl64.Translate3D(-t.Translation.X(), -t.Translation.Y(), -t.Translation.Z())
	return rInv.Mul4(tInv), nil
}

// ToLocal переводит мировую точку в локальный фрейм
func (t Transform) ToLocal(p mgl64.Vec3) (mgl64.Vec3, error) {
	inv, err := t.Inverse()
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return inv.Mul4x1(p.Vec4(1)).Vec3(), nil
}
