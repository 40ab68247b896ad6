package vgraph

import (
	"fmt"
	"image"
	"sort"

	"github.com/gogpu/vgraph/gpucore"
)

// Layout places a mix input. Zero X, Y, Width or Height fall back to the
// input node's own position and size. ZIndex is mandatory and unique per
// mix; higher values are painted on top.
type Layout struct {
	X, Y          int
	Width, Height int
	ZIndex        int
}

// mixSlot is one zIndex-keyed input of a mix. The node is borrowed.
type mixSlot struct {
	node      *node
	layout    Layout
	positions gpucore.BufferID
}

// rect resolves the layout against the node geometry.
func (s *mixSlot) rect() Rect {
	r := Rect{X: s.layout.X, Y: s.layout.Y, Width: s.layout.Width, Height: s.layout.Height}
	if r.X == 0 {
		r.X = s.node.x
	}
	if r.Y == 0 {
		r.Y = s.node.y
	}
	if r.Width == 0 {
		r.Width = s.node.width
	}
	if r.Height == 0 {
		r.Height = s.node.height
	}
	return r
}

// Slot describes an occupied mix slot.
type Slot struct {
	Node   Node
	Layout Layout
	Rect   Rect
}

// MixNode composites any number of inputs into one frame. Its size is the
// bounding box of its slots.
type MixNode struct {
	*node

	slots   map[int]*mixSlot
	closing bool
}

// NewMixNode creates an empty mix.
func NewMixNode(ctx *Context) *MixNode {
	ctx.lock()
	defer ctx.unlock()
	opts := DefaultNodeOptions()
	opts.Name = "mix"
	opts.UseFramebuffer = true
	opts.CreateRaster = true
	m := &MixNode{slots: make(map[int]*mixSlot)}
	m.node = newNode(ctx, opts)
	m.init(m, m)
	return m
}

// Slots returns the occupied slots in ascending zIndex order.
func (m *MixNode) Slots() []Slot {
	m.ctx.lock()
	defer m.ctx.unlock()
	out := make([]Slot, 0, len(m.slots))
	for _, z := range m.order() {
		s := m.slots[z]
		out = append(out, Slot{Node: s.node.pub, Layout: s.layout, Rect: s.rect()})
	}
	return out
}

func (m *MixNode) order() []int {
	keys := make([]int, 0, len(m.slots))
	for z := range m.slots {
		keys = append(keys, z)
	}
	sort.Ints(keys)
	return keys
}

func (m *MixNode) addInput(src *node, layout *Layout) error {
	if layout == nil {
		return fmt.Errorf("vgraph: connect %s to %s: %w", src.name, m.name, ErrLayoutRequired)
	}
	if _, ok := m.slots[layout.ZIndex]; ok {
		return fmt.Errorf("vgraph: connect %s to %s at zIndex %d: %w", src.name, m.name, layout.ZIndex, ErrSlotOccupied)
	}
	m.slots[layout.ZIndex] = &mixSlot{node: src, layout: *layout}
	m.resize(0, 0)
	return nil
}

func (m *MixNode) removeInput(src *node) {
	for z, s := range m.slots {
		if s.node != src {
			continue
		}
		if s.positions != gpucore.InvalidID && m.ctx.gpu != nil {
			m.ctx.gpu.DeleteBuffer(s.positions)
		}
		delete(m.slots, z)
		if !m.closing {
			m.resize(0, 0)
		}
		return
	}
}

// connected refreshes the geometry once an output exists.
func (m *MixNode) connected() { m.resize(0, 0) }

// resize ignores its arguments and adopts the bounding box of the slots,
// then regenerates every slot's position buffer.
func (m *MixNode) resize(int, int) {
	var w, h int
	for _, s := range m.slots {
		r := s.rect()
		w = max(w, r.Right())
		h = max(h, r.Bottom())
	}
	m.node.resize(w, h)
	if m.ctx.mode != ModeGPU || m.width == 0 || m.height == 0 || m.fsm.state == StateClosed {
		return
	}
	for _, s := range m.slots {
		data := rectToQuad(s.rect(), m.width, m.height)
		if s.positions != gpucore.InvalidID {
			if err := m.ctx.gpu.BufferData(s.positions, data); err != nil {
				m.ctx.destroyLocked(m.name+" update slot failed", err)
				return
			}
			continue
		}
		buf, err := m.ctx.gpu.CreateBuffer(data)
		if err != nil {
			m.ctx.destroyLocked(m.name+" create slot failed", err)
			return
		}
		s.positions = buf
	}
}

// pullAll requests a frame from every slot in paint order and reports
// whether at least one produced.
func (m *MixNode) pullAll(seq uint64) ([]int, bool) {
	order := m.order()
	produced := false
	for _, z := range order {
		if m.slots[z].node.requestFrameLocked(seq) {
			produced = true
		}
	}
	return order, produced
}

func (m *MixNode) render(seq uint64) bool {
	order, produced := m.pullAll(seq)
	if !produced {
		return false
	}
	if err := m.ctx.gpu.Clear(m.fb); err != nil {
		m.log.Debug("vgraph: clear failed", "err", err)
		return false
	}
	for _, z := range order {
		s, ok := m.slots[z]
		if !ok || s.node.totalFrames == 0 || s.node.texture == gpucore.InvalidID ||
			s.positions == gpucore.InvalidID {
			continue
		}
		m.draw(s.node.texture, s.positions)
	}
	return true
}

// render2d requires the raster sub-surface: without it the mix reports no
// frame even when inputs produced one.
func (m *MixNode) render2d(seq uint64) bool {
	order, produced := m.pullAll(seq)
	if !produced || m.canvas == nil {
		return false
	}
	m.canvas.ClearRect(0, 0, float64(m.width), float64(m.height))
	for _, z := range order {
		s, ok := m.slots[z]
		if !ok || s.node.totalFrames == 0 {
			continue
		}
		r := s.rect()
		m.draw2d(s.node.self.rasterImage(), r.X, r.Y, r.Width, r.Height)
	}
	return true
}

func (m *MixNode) rasterImage() image.Image { return m.node.rasterImage() }

func (m *MixNode) parents() []FrameInfo {
	out := make([]FrameInfo, 0, len(m.slots))
	for _, z := range m.order() {
		out = append(out, m.slots[z].node.infoLocked())
	}
	return out
}

// release disconnects every remaining input, which also frees its slot
// buffer.
func (m *MixNode) release() {
	m.closing = true
	for _, z := range m.order() {
		if s, ok := m.slots[z]; ok {
			s.node.disconnectLocked()
		}
	}
}
