// internal/spatial/utils.go

package spatial

import "math"

// Axis — ось координат.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Axes перечисляет оси в порядке X, Y, Z.
var Axes = [3]Axis{AxisX, AxisY, AxisZ}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return "z"
	}
}

// Component возвращает координату вектора по оси.
func (v Vec3) Component(a Axis) float64 {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	default:
		return v.Z
	}
}

// Extent возвращает (min, max) бокса по оси.
func (b AABB) Extent(a Axis) (float64, float64) {
	return b.axis(int(a))
}

// Buffer расширяет бокс на distance по всем осям.
func (b AABB) Buffer(distance float64) AABB {
	d := Vec3{distance, distance, distance}
	return AABB{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// Contains проверяет, содержится ли точка в боксе (границы включительно).
func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// ContainsBox проверяет, что o целиком лежит внутри b по всем трём осям.
func (b AABB) ContainsBox(o AABB) bool {
	return b.Contains(o.Min) && b.Contains(o.Max)
}

// Overlaps проверяет пересечение боксов (касание гранями тоже считается).
func (b AABB) Overlaps(o AABB) bool {
	for _, a := range Axes {
		if Gap(b, o, a) != 0 {
			return false
		}
	}
	return true
}

// Intersection возвращает общую часть боксов; ok=false, если пересечения нет.
func (b AABB) Intersection(o AABB) (AABB, bool) {
	if !b.Overlaps(o) {
		return AABB{}, false
	}
	return AABB{
		Min: Vec3{math.Max(b.Min.X, o.Min.X), math.Max(b.Min.Y, o.Min.Y), math.Max(b.Min.Z, o.Min.Z)},
		Max: Vec3{math.Min(b.Max.X, o.Max.X), math.Min(b.Max.Y, o.Max.Y), math.Min(b.Max.Z, o.Max.Z)},
	}, true
}

// Gap возвращает разрыв между боксами по оси со знаком:
// > 0 — a целиком раньше b (a.max < b.min), < 0 — a целиком после b, 0 — проекции пересекаются.
func Gap(a, b AABB, axis Axis) float64 {
	aMin, aMax := a.Extent(axis)
	bMin, bMax := b.Extent(axis)
	switch {
	case aMax < bMin:
		return bMin - aMax
	case bMax < aMin:
		return -(aMin - bMax)
	default:
		return 0
	}
}

// DistanceBetween вычисляет евклидово расстояние.
func DistanceBetween(a, b Vec3) float64 {
	return a.Sub(b).Length()
}

// Projection — результат проекции точки на отрезок.
type Projection struct {
	T       float64 // параметр вдоль отрезка, 0 — начало, 1 — конец
	Along   float64 // расстояние от начала вдоль отрезка (T * длина)
	Lateral float64 // перпендикулярное расстояние до прямой
}

// ProjectOntoSegment проецирует p на отрезок from→to.
// Для отрезка нулевой длины ok=false.
func ProjectOntoSegment(p, from, to Vec3) (Projection, bool) {
	dir := to.Sub(from)
	length := dir.Length()
	if length < epsilon {
		return Projection{}, false
	}
	t := p.Sub(from).Dot(dir) / (length * length)
	closest := from.Add(dir.Scale(t))
	return Projection{
		T:       t,
		Along:   t * length,
		Lateral: DistanceBetween(p, closest),
	}, true
}

// SegmentIntersects проверяет пересечение отрезка from→to с боксом (slab-тест).
func (b AABB) SegmentIntersects(from, to Vec3) bool {
	dir := to.Sub(from)
	tMin, tMax := 0.0, 1.0
	for _, a := range Axes {
		lo, hi := b.Extent(a)
		o := from.Component(a)
		d := dir.Component(a)
		if math.Abs(d) < epsilon {
			if o < lo || o > hi {
				return false
			}
			continue
		}
		t1 := (lo - o) / d
		t2 := (hi - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return false
		}
	}
	return true
}

// Clamp01 ограничивает значение отрезком [0, 1].
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Quantize округляет v до шага step; step <= 0 оставляет значение как есть.
func Quantize(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}
