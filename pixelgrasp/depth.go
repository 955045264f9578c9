package pixelgrasp

// DepthMap is a dense per-pixel distance image in meters, row-major, indexed
// with x as the column and y as the row.
type DepthMap struct {
	width  int
	height int
	data   []float64
}

// NewDepthMap returns a zeroed depth map of the given dimensions.
func NewDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// Width returns the number of columns.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the number of rows.
func (dm *DepthMap) Height() int {
	return dm.height
}

// GetDepth returns the reading at column x, row y.
func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data[y*dm.width+x]
}

// Set stores a reading at column x, row y.
func (dm *DepthMap) Set(x, y int, z float64) {
	dm.data[y*dm.width+x] = z
}

// Contains reports whether (x, y) lies inside the map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// ClampToMax zeroes every reading strictly beyond max. Readings past the
// sensor's range come back as garbage and must not contribute to averages.
func (dm *DepthMap) ClampToMax(max float64) {
	for i, z := range dm.data {
		if z > max {
			dm.data[i] = 0
		}
	}
}
