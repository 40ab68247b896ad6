package vgraph

import (
	"fmt"
	"time"

	"github.com/gogpu/vgraph/media"
	"github.com/gogpu/vgraph/sched"
)

// DestinationNode is the sink of a graph and drives its frame clock.
//
// Connecting an input arms a repeating timer at the context frame rate;
// removing it cancels the timer. Every tick pulls one frame with a strictly
// increasing sequence number and draws it on the context surface. A
// backend error reported after the pull destroys the context.
type DestinationNode struct {
	*node

	timer     sched.Handle
	gen       uint64
	armedRate float64
	seq       uint64

	sink  media.FrameSink
	track media.Track
}

// NewDestinationNode creates a destination presenting on the context
// surface.
func NewDestinationNode(ctx *Context) *DestinationNode {
	ctx.lock()
	defer ctx.unlock()
	return newDestination(ctx, "destination")
}

func newDestination(ctx *Context, name string) *DestinationNode {
	opts := DefaultNodeOptions()
	opts.Name = name
	opts.CreateTexture = false
	d := &DestinationNode{}
	d.node = newNode(ctx, opts)
	d.init(d, d)
	if d.fsm.state == StateClosed {
		return d
	}
	switch ctx.mode {
	case ModeGPU:
		d.setTexCoords(destinationTexCoords)
	case ModeRaster:
		d.canvas = ctx.canvas
	}
	return d
}

// SetFrameSink sets a sink receiving a copy of the surface after every
// produced frame. A nil sink disables export.
func (d *DestinationNode) SetFrameSink(sink media.FrameSink) {
	d.ctx.lock()
	defer d.ctx.unlock()
	d.sink = sink
}

// Sequence returns the next sequence number.
func (d *DestinationNode) Sequence() uint64 {
	d.ctx.lock()
	defer d.ctx.unlock()
	return d.seq
}

// Running reports whether the frame clock is armed.
func (d *DestinationNode) Running() bool {
	d.ctx.lock()
	defer d.ctx.unlock()
	return d.timer != 0
}

func (d *DestinationNode) addInput(src *node, layout *Layout) error {
	if err := d.node.addInput(src, layout); err != nil {
		return err
	}
	d.start()
	return nil
}

func (d *DestinationNode) removeInput(src *node) {
	d.node.removeInput(src)
	d.stop()
}

func (d *DestinationNode) release() { d.stop() }

func (d *DestinationNode) start() {
	d.stop()
	d.armedRate = d.ctx.frameRate
	d.gen++
	gen := d.gen
	period := time.Duration(float64(time.Second) / d.armedRate)
	d.timer = d.ctx.scheduler().SetInterval(period, func() {
		d.ctx.lock()
		defer d.ctx.unlock()
		d.tick(gen)
	})
	d.log.Debug("vgraph: frame clock armed", "fps", d.armedRate)
}

func (d *DestinationNode) stop() {
	if d.timer == 0 {
		return
	}
	d.ctx.scheduler().Clear(d.timer)
	d.timer = 0
	d.gen++
}

func (d *DestinationNode) tick(gen uint64) {
	if gen != d.gen || d.fsm.state == StateClosed {
		return
	}
	if d.armedRate != d.ctx.frameRate {
		d.start()
	}
	seq := d.seq
	d.seq++
	produced := d.requestFrameLocked(seq)
	if d.ctx.gpu != nil {
		if err := d.ctx.gpu.Err(); err != nil {
			reason := fmt.Sprintf("%s req %d render %d failed: %v", d.name, d.seq, d.totalFrames, err)
			d.ctx.destroyLocked(reason, err)
			return
		}
	}
	if produced {
		d.export(seq)
	}
}

func (d *DestinationNode) export(seq uint64) {
	if d.sink == nil && d.track == nil {
		return
	}
	img, err := d.ctx.snapshotLocked()
	if err != nil {
		d.log.Debug("vgraph: export failed", "err", err)
		return
	}
	if d.track != nil {
		d.track.Push(img)
	}
	if d.sink != nil {
		d.sink.WriteFrame(img, seq)
	}
}
