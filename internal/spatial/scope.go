// internal/spatial/scope.go

package spatial

// VisibilityScope — сферическая область наблюдения вокруг точки.
type VisibilityScope struct {
	Center Vec3
	Radius float64
}

// DefaultViewRadius — радиус обзора, если не задан в конфигурации.
const DefaultViewRadius = 100.0

// NewScope создаёт область обзора; radius <= 0 заменяется на DefaultViewRadius.
func NewScope(center Vec3, radius float64) VisibilityScope {
	if radius <= 0 {
		radius = DefaultViewRadius
	}
	return VisibilityScope{Center: center, Radius: radius}
}

// Bounds возвращает AABB, описанный вокруг сферы.
func (vs VisibilityScope) Bounds() AABB {
	return AABB{Min: vs.Center, Max: vs.Center}.Buffer(vs.Radius)
}
