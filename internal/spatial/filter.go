// internal/spatial/filter.go

package spatial

// IsInScope проверяет, попадает ли точка в область.
func (vs VisibilityScope) IsInScope(p Vec3) bool {
	if vs.Radius > 1e8 { // бесконечность
		return true
	}
	d := p.Sub(vs.Center)
	return d.Dot(d) <= vs.Radius*vs.Radius
}
