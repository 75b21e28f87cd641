package detached

import "errors"

// Ошибки группы матриц. Оборачиваются через %w с id матрицы, сравнивать через errors.Is.
var (
	ErrNotFound         = errors.New("матрица не найдена")
	ErrNoIntersection   = errors.New("луч не пересекает ни одного меша")
	ErrNoEmptySlot      = errors.New("свободный воксель вдоль луча не найден")
	ErrInvalidTransform = errors.New("преобразование матрицы отсутствует или необратимо")
	ErrInvalidRay       = errors.New("неверное направление луча")
	ErrBlocked          = errors.New("место занято игроком")
	ErrOutOfRange       = errors.New("индекс вокселя вне чанка")
)
