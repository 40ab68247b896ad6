package vgraph

// MirrorNode flips its input horizontally.
//
// In GPU mode it draws the input through mirrored texture coordinates into
// its own framebuffer. In raster mode the flip is a canvas transform,
// applied one scheduler turn after construction and kept in step with the
// node width afterwards.
type MirrorNode struct {
	*node

	flipped bool
}

// NewMirrorNode creates a mirror.
func NewMirrorNode(ctx *Context) *MirrorNode {
	ctx.lock()
	defer ctx.unlock()
	opts := DefaultNodeOptions()
	opts.Name = "mirror"
	opts.UseFramebuffer = true
	opts.CreateRaster = true
	m := &MirrorNode{}
	m.node = newNode(ctx, opts)
	m.init(m, m)

	switch {
	case ctx.mode == ModeGPU && m.fsm.state != StateClosed:
		m.setTexCoords(mirrorTexCoords)
	case m.canvas != nil:
		ctx.scheduler().SetTimeout(0, func() {
			ctx.lock()
			defer ctx.unlock()
			if m.canvas == nil {
				return
			}
			m.flipped = true
			m.applyFlip()
		})
	}
	return m
}

func (m *MirrorNode) applyFlip() {
	m.canvas.ResetTransform()
	m.canvas.Scale(-1, 1)
	m.canvas.Translate(float64(-m.width), 0)
}

func (m *MirrorNode) resize(width, height int) {
	m.node.resize(width, height)
	if m.flipped && m.canvas != nil {
		m.applyFlip()
	}
}
