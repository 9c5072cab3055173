package geometry

import (
	"math"
	"strings"
)

// NotDeterminable is the sentinel reported when a dimension cannot be
// derived from the drawing. Missing geometry is an answerable condition,
// not an error.
const NotDeterminable = "not determinable"

const (
	layerPlotBoundary = "Plot Boundary"
	layerWalls        = "Walls"

	// metersPerFloor is the estimate used when no entity carries an
	// explicit height.
	metersPerFloor = 3.0
)

// Value is a derived dimension that may be indeterminate.
type Value struct {
	val float64
	ok  bool
}

func Determinable(v float64) Value { return Value{val: v, ok: true} }

func Indeterminate() Value { return Value{} }

// Float returns the numeric value and whether it is determinable.
func (v Value) Float() (float64, bool) { return v.val, v.ok }

// JSONValue returns the rounded numeric value, or the NotDeterminable
// sentinel string, suitable for inclusion in a tool result payload.
func (v Value) JSONValue() any {
	if !v.ok {
		return NotDeterminable
	}
	return round2(v.val)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Box is an axis-aligned bounding box in drawing coordinates (mm).
type Box struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

func (b Box) Width() float64  { return b.MaxX - b.MinX }
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// PlotArea computes the plot area in square meters using the shoelace
// formula over the closed polylines on the "Plot Boundary" layer. When
// several boundaries qualify, the largest area wins.
func (d *Drawing) PlotArea() Value {
	best := Indeterminate()
	for _, e := range d.EntitiesOnLayer(layerPlotBoundary) {
		if !e.Closed || len(e.Points) < 3 {
			continue
		}
		area := shoelace(e.Points) / 1e6
		if prev, ok := best.Float(); !ok || area > prev {
			best = Determinable(area)
		}
	}
	return best
}

// shoelace returns the absolute polygon area in mm² for vertices in
// either winding order.
func shoelace(pts []Point) float64 {
	var sum float64
	n := len(pts)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}

// ExtensionDepth computes how far the second "Walls" polyline extends
// past the first, in meters. It compares the max Y of each polyline's
// bounding box, so it measures rearward projection regardless of shape.
func (d *Drawing) ExtensionDepth() Value {
	var walls []Entity
	for _, e := range d.EntitiesOnLayer(layerWalls) {
		if len(e.Points) > 0 {
			walls = append(walls, e)
		}
	}
	if len(walls) < 2 {
		return Indeterminate()
	}
	first, _ := boundsOf(walls[0].Points)
	second, _ := boundsOf(walls[1].Points)
	return Determinable(math.Abs(second.MaxY-first.MaxY) / 1000)
}

// BuildingHeight returns the building height in meters. Explicit height
// annotations win, then the maximum z-coordinate when any entity carries
// 3-D points (mm to m), then an estimate from the largest floor count at
// three meters per floor.
func (d *Drawing) BuildingHeight() Value {
	if d == nil {
		return Indeterminate()
	}
	var (
		maxHeight float64
		hasHeight bool
		maxZ      float64
		maxFloors int
	)
	for _, e := range d.Entities {
		if e.Height != nil && *e.Height > 0 {
			if !hasHeight || *e.Height > maxHeight {
				maxHeight = *e.Height
			}
			hasHeight = true
		}
		for _, p := range e.Points {
			if p.Z > maxZ {
				maxZ = p.Z
			}
		}
		if e.Floors != nil && *e.Floors > maxFloors {
			maxFloors = *e.Floors
		}
	}
	if hasHeight {
		return Determinable(maxHeight)
	}
	if maxZ > 0 {
		return Determinable(maxZ / 1000)
	}
	if maxFloors > 0 {
		return Determinable(float64(maxFloors) * metersPerFloor)
	}
	return Indeterminate()
}

// BoundingBox returns the bounding box over every point in the drawing.
func (d *Drawing) BoundingBox() (Box, bool) {
	if d == nil {
		return Box{}, false
	}
	var all []Point
	for _, e := range d.Entities {
		all = append(all, e.Points...)
	}
	return boundsOf(all)
}

func boundsOf(pts []Point) (Box, bool) {
	if len(pts) == 0 {
		return Box{}, false
	}
	b := Box{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b, true
}

// Dimension identifies a derivable drawing dimension.
type Dimension string

const (
	DimensionPlotArea       Dimension = "plot_area"
	DimensionExtensionDepth Dimension = "extension_depth"
	DimensionBuildingHeight Dimension = "building_height"
	DimensionAll            Dimension = "all"
)

// ValidDimension reports whether s names a supported dimension type.
func ValidDimension(s string) bool {
	switch Dimension(s) {
	case DimensionPlotArea, DimensionExtensionDepth, DimensionBuildingHeight, DimensionAll:
		return true
	}
	return false
}

// Analyze derives the requested dimension(s) as a JSON-ready map. For
// DimensionAll the result also includes the overall bounding box in
// meters and per-layer entity counts.
func (d *Drawing) Analyze(kind Dimension) map[string]any {
	out := make(map[string]any)

	switch kind {
	case DimensionPlotArea:
		out["plot_area_m2"] = d.PlotArea().JSONValue()
	case DimensionExtensionDepth:
		out["extension_depth_m"] = d.ExtensionDepth().JSONValue()
	case DimensionBuildingHeight:
		out["building_height_m"] = d.BuildingHeight().JSONValue()
	default:
		out["plot_area_m2"] = d.PlotArea().JSONValue()
		out["extension_depth_m"] = d.ExtensionDepth().JSONValue()
		out["building_height_m"] = d.BuildingHeight().JSONValue()

		if box, ok := d.BoundingBox(); ok {
			out["plot_width_m"] = round2(box.Width() / 1000)
			out["plot_depth_m"] = round2(box.Height() / 1000)
		} else {
			out["plot_width_m"] = NotDeterminable
			out["plot_depth_m"] = NotDeterminable
		}

		order, counts := d.Layers()
		layers := make(map[string]int, len(counts))
		for _, name := range order {
			layers[name] = counts[name]
		}
		out["layers"] = layers
		out["entity_count"] = len(d.Entities)
	}

	return out
}

// HasHighway reports whether any entity sits on a highway-related layer.
func (d *Drawing) HasHighway() bool {
	if d == nil {
		return false
	}
	for _, e := range d.Entities {
		if strings.Contains(strings.ToLower(e.Layer), "highway") {
			return true
		}
	}
	return false
}
