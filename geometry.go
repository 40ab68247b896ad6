package vgraph

// Vertex data for the textured quad, drawn as a 4-vertex triangle strip.
var (
	quadPositions = []float32{
		-1, -1,
		-1, 1,
		1, -1,
		1, 1,
	}
	quadTexCoords = []float32{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	}
	// mirrorTexCoords flips the image horizontally.
	mirrorTexCoords = []float32{
		1, 0,
		1, 1,
		0, 0,
		0, 1,
	}
	// destinationTexCoords flips offscreen content vertically for
	// presentation.
	destinationTexCoords = []float32{
		0, 1,
		0, 0,
		1, 1,
		1, 0,
	}
)

// Rect is an integer rectangle in node pixels.
type Rect struct {
	X, Y, Width, Height int
}

// Right returns X+Width.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns Y+Height.
func (r Rect) Bottom() int { return r.Y + r.Height }

// vertexPoint maps a pixel position inside a width x height surface to
// normalized device coordinates.
func vertexPoint(x, y, width, height int) (float32, float32) {
	return float32(x)/float32(width)*2 - 1, float32(y)/float32(height)*2 - 1
}

// rectToQuad returns the strip positions of r inside a width x height
// surface: top-left, bottom-left, top-right, bottom-right.
func rectToQuad(r Rect, width, height int) []float32 {
	out := make([]float32, 0, 8)
	for _, p := range [4][2]int{
		{r.X, r.Y},
		{r.X, r.Bottom()},
		{r.Right(), r.Y},
		{r.Right(), r.Bottom()},
	} {
		x, y := vertexPoint(p[0], p[1], width, height)
		out = append(out, x, y)
	}
	return out
}
