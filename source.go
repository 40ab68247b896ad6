package vgraph

import (
	"image"
	"reflect"

	"golang.org/x/image/draw"

	"github.com/gogpu/vgraph/gpucore"
	"github.com/gogpu/vgraph/media"
)

// SourceNode is a leaf producing frames from a media.Producer.
//
// A frame is new when a video producer's decoded-frame counter advanced,
// when a still producer exposes a different image or size, or on every
// pull of a generated producer.
type SourceNode struct {
	*node

	producer media.Producer
	current  image.Image
	seen     int64
	forced   bool
}

// NewSourceNode creates a source reading from p.
func NewSourceNode(ctx *Context, p media.Producer) *SourceNode {
	ctx.lock()
	defer ctx.unlock()
	opts := DefaultNodeOptions()
	opts.Name = "imageSource"
	s := &SourceNode{producer: p}
	s.node = newNode(ctx, opts)
	s.init(s, s)
	return s
}

// ReplaceProducer swaps the producer. The next pull re-uploads the frame
// in full.
func (s *SourceNode) ReplaceProducer(p media.Producer) {
	s.ctx.lock()
	defer s.ctx.unlock()
	if p == s.producer {
		return
	}
	s.producer = p
	s.current = nil
	s.seen = 0
	s.forced = true
}

func (s *SourceNode) render(uint64) bool   { return s.pull(true) }
func (s *SourceNode) render2d(uint64) bool { return s.pull(false) }

func (s *SourceNode) rasterImage() image.Image { return s.current }

func (s *SourceNode) pull(gpu bool) bool {
	if s.producer == nil {
		return false
	}
	img, meta := s.producer.Frame()
	if img == nil {
		return false
	}
	w, h := meta.Width, meta.Height
	switch meta.Kind {
	case media.KindVideo:
		if meta.Frames == s.seen && !s.forced {
			return false
		}
		s.seen = meta.Frames
		s.droppedFrames = max(meta.Frames-int64(s.totalFrames), 0)
	case media.KindStill:
		if sameImage(img, s.current) && w == s.width && h == s.height && !s.forced {
			return false
		}
	}
	s.current = img

	sameSize := w == s.width && h == s.height && s.totalFrames > 0 && !s.forced
	s.forced = false
	if gpu {
		if err := s.upload(img, w, h, sameSize); err != nil {
			s.log.Debug("vgraph: upload failed", "err", err)
			return false
		}
	}
	if !sameSize {
		s.self.resize(w, h)
	}
	return true
}

func (s *SourceNode) upload(img image.Image, w, h int, sameSize bool) error {
	if s.texture == gpucore.InvalidID {
		return nil
	}
	pix := rgbaPixels(img)
	if sameSize {
		return s.ctx.gpu.WriteTexture(s.texture, w, h, pix)
	}
	return s.ctx.gpu.AllocTexture(s.texture, w, h, pix)
}

// sameImage reports whether a and b are the same image value. Images of
// an uncomparable dynamic type always count as changed.
func sameImage(a, b image.Image) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return a == b
}

// rgbaPixels returns tightly packed RGBA bytes of img.
func rgbaPixels(img image.Image) []byte {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*b.Dx() && b.Min == (image.Point{}) {
		return rgba.Pix[:4*b.Dx()*b.Dy()]
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst.Pix
}
