// internal/spatial/geometry.go

package spatial

import "math"

// epsilon — порог, ниже которого длины и расстояния считаются нулевыми.
const epsilon = 1e-9

// Vec3 — точка или вектор в 3D (Y — вверх).
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// V — короткий конструктор Vec3.
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Length возвращает евклидову длину вектора.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// IsFinite сообщает, что все компоненты — конечные числа.
func (v Vec3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Size — габариты узла (ширина по X, высота по Y, глубина по Z).
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	Depth  float64 `json:"depth" yaml:"depth"`
}

// Half возвращает полуразмеры как вектор.
func (s Size) Half() Vec3 {
	return Vec3{s.Width / 2, s.Height / 2, s.Depth / 2}
}

// Largest возвращает наибольший габарит.
func (s Size) Largest() float64 {
	return math.Max(s.Width, math.Max(s.Height, s.Depth))
}

// Radius — «радиус» узла: наибольший полуразмер.
func (s Size) Radius() float64 {
	return s.Largest() / 2
}

// Valid проверяет, что габариты неотрицательны и конечны.
func (s Size) Valid() bool {
	for _, c := range [3]float64{s.Width, s.Height, s.Depth} {
		if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// AABB — ограничивающий параллелепипед, выровненный по осям.
type AABB struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// BoxAt строит AABB с центром center и габаритами size.
func BoxAt(center Vec3, size Size) AABB {
	h := size.Half()
	return AABB{Min: center.Sub(h), Max: center.Add(h)}
}

// BoxAround строит наименьший AABB, содержащий все точки.
func BoxAround(points ...Vec3) AABB {
	if len(points) == 0 {
		return AABB{}
	}
	b := AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min = Vec3{math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y), math.Min(b.Min.Z, p.Z)}
		b.Max = Vec3{math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y), math.Max(b.Max.Z, p.Z)}
	}
	return b
}

// Size возвращает габариты бокса.
func (b AABB) Size() Size {
	d := b.Max.Sub(b.Min)
	return Size{Width: d.X, Height: d.Y, Depth: d.Z}
}

// Volume возвращает объём (0 для вырожденного бокса).
func (b AABB) Volume() float64 {
	s := b.Size()
	if s.Width <= 0 || s.Height <= 0 || s.Depth <= 0 {
		return 0
	}
	return s.Width * s.Height * s.Depth
}

// axis возвращает (min, max) бокса по оси i (0=X, 1=Y, 2=Z).
func (b AABB) axis(i int) (float64, float64) {
	switch i {
	case 0:
		return b.Min.X, b.Max.X
	case 1:
		return b.Min.Y, b.Max.Y
	default:
		return b.Min.Z, b.Max.Z
	}
}
