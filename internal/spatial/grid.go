// internal/spatial/grid.go

package spatial

import (
	"math"
	"sort"
)

// maxCellsPerBox — боксы, покрывающие больше ячеек, хранятся отдельно
// и возвращаются любым запросом как кандидаты.
const maxCellsPerBox = 4096

// maxCellIndex — предел номера ячейки по каждой оси.
const maxCellIndex = 1 << 30

// DefaultCellSize — размер ячейки сетки по умолчанию.
const DefaultCellSize = 10.0

type cellKey struct {
	X, Y, Z int
}

// Grid — равномерная сетка для запросов по области.
// Один бокс регистрируется во всех ячейках, которые он покрывает.
// Не потокобезопасна: синхронизацию обеспечивает владелец.
type Grid struct {
	cellSize  float64
	cells     map[cellKey]map[string]struct{}
	boxes     map[string]AABB
	oversized map[string]struct{}
}

// NewGrid создаёт сетку; cellSize <= 0 заменяется на DefaultCellSize.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Grid{
		cellSize:  cellSize,
		cells:     make(map[cellKey]map[string]struct{}),
		boxes:     make(map[string]AABB),
		oversized: make(map[string]struct{}),
	}
}

// CellSize возвращает размер ячейки.
func (g *Grid) CellSize() float64 {
	return g.cellSize
}

// Len возвращает число проиндексированных боксов.
func (g *Grid) Len() int {
	return len(g.boxes)
}

// Insert добавляет или перемещает бокс с идентификатором id.
func (g *Grid) Insert(id string, box AABB) {
	g.Remove(id)
	g.boxes[id] = box
	lo, hi := g.cellRange(box)
	if cellCount(lo, hi) > maxCellsPerBox {
		g.oversized[id] = struct{}{}
		return
	}
	forEachCell(lo, hi, func(k cellKey) {
		set, ok := g.cells[k]
		if !ok {
			set = make(map[string]struct{})
			g.cells[k] = set
		}
		set[id] = struct{}{}
	})
}

// Remove удаляет бокс из сетки.
func (g *Grid) Remove(id string) {
	box, ok := g.boxes[id]
	if !ok {
		return
	}
	delete(g.boxes, id)
	if _, big := g.oversized[id]; big {
		delete(g.oversized, id)
		return
	}
	lo, hi := g.cellRange(box)
	forEachCell(lo, hi, func(k cellKey) {
		if set, ok := g.cells[k]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(g.cells, k)
			}
		}
	})
}

// Query возвращает отсортированные id боксов, пересекающих region.
func (g *Grid) Query(region AABB) []string {
	found := make(map[string]struct{})
	lo, hi := g.cellRange(region)
	if cellCount(lo, hi) > len(g.cells) {
		// Область больше заполненной части сетки — дешевле перебрать боксы.
		for id, box := range g.boxes {
			if box.Overlaps(region) {
				found[id] = struct{}{}
			}
		}
	} else {
		forEachCell(lo, hi, func(k cellKey) {
			for id := range g.cells[k] {
				if g.boxes[id].Overlaps(region) {
					found[id] = struct{}{}
				}
			}
		})
		for id := range g.oversized {
			if g.boxes[id].Overlaps(region) {
				found[id] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Grid) cellRange(b AABB) (cellKey, cellKey) {
	return g.cellOf(b.Min), g.cellOf(b.Max)
}

func (g *Grid) cellOf(p Vec3) cellKey {
	return cellKey{
		X: g.cellIndex(p.X),
		Y: g.cellIndex(p.Y),
		Z: g.cellIndex(p.Z),
	}
}

// cellIndex ограничен ±maxCellIndex: дальние координаты попадают в крайние ячейки.
func (g *Grid) cellIndex(c float64) int {
	i := math.Floor(c / g.cellSize)
	switch {
	case i > maxCellIndex:
		return maxCellIndex
	case i < -maxCellIndex:
		return -maxCellIndex
	}
	return int(i)
}

func cellCount(lo, hi cellKey) int {
	n := 1
	for _, d := range [3]int{hi.X - lo.X + 1, hi.Y - lo.Y + 1, hi.Z - lo.Z + 1} {
		n *= d
		if n > math.MaxInt32 {
			return math.MaxInt32
		}
	}
	return n
}

func forEachCell(lo, hi cellKey, fn func(cellKey)) {
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				fn(cellKey{x, y, z})
			}
		}
	}
}
