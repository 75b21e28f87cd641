package vec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 представляет трехмерный вектор с целочисленными координатами
type Vec3 struct {
	X int
	Y int
	Z int
}

// FloorVec3 округляет вещественный вектор вниз покомпонентно.
// Используется floor, а не усечение: -0.5 даёт -1, а не 0.
func FloorVec3(v mgl64.Vec3) Vec3 {
	return Vec3{
		X: int(math.Floor(v.X())),
		Y: int(math.Floor(v.Y())),
		Z: int(math.Floor(v.Z())),
	}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Mul умножает вектор на скаляр
func (v Vec3) Mul(k int) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Float переводит вектор в mgl64.Vec3
func (v Vec3) Float() mgl64.Vec3 {
	return mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)}
}

// Key кодирует вектор в строковый ключ вида "x|y|z"
func (v Vec3) Key() string {
	return strconv.Itoa(v.X) + "|" + strconv.Itoa(v.Y) + "|" + strconv.Itoa(v.Z)
}

// String нужен для логов
func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}

// ParseKey разбирает ключ вида "x|y|z"
func ParseKey(key string) (Vec3, error) {
	parts := strings.Split(key, "|")
	if len(parts) != 3 {
		return Vec3{}, fmt.Errorf("неверный ключ %q: ожидалось 3 компоненты", key)
	}

	var out [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Vec3{}, fmt.Errorf("неверный ключ %q: %w", key, err)
		}
		out[i] = n
	}
	return Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}
