package vgraph

import (
	"math"

	"github.com/gogpu/vgraph/media"
)

// TrackDestination is a destination that exports the context surface as a
// live track. Its size drives the surface size, and a muted track destroys
// the context with ErrTrackMuted.
type TrackDestination struct {
	*DestinationNode

	cancelMute func()
}

// NewTrackDestination creates a destination capturing the surface into
// track at the context frame rate.
func NewTrackDestination(ctx *Context, track media.Track) *TrackDestination {
	ctx.lock()
	defer ctx.unlock()
	return newTrackDestination(ctx, track, "destination")
}

func newTrackDestination(ctx *Context, track media.Track, name string) *TrackDestination {
	t := &TrackDestination{DestinationNode: newDestination(ctx, name)}
	t.init(t, t)
	if t.fsm.state == StateClosed || track == nil {
		return t
	}
	t.track = track
	if err := track.Capture(ctx.frameRate); err != nil {
		ctx.destroyLocked(name+" capture failed", err)
		return t
	}
	t.cancelMute = track.OnMute(func() {
		ctx.Destroy("video track mute", ErrTrackMuted)
	})
	return t
}

// Track returns the exported track.
func (t *TrackDestination) Track() media.Track { return t.track }

func (t *TrackDestination) resize(width, height int) {
	t.node.resize(width, height)
	if t.ctx.mode == ModeUnavailable {
		return
	}
	if err := t.ctx.setSizeLocked(t.width, t.height); err != nil {
		t.log.Warn("vgraph: surface resize failed", "err", err)
	}
}

func (t *TrackDestination) release() {
	t.DestinationNode.release()
	if t.cancelMute != nil {
		t.cancelMute()
		t.cancelMute = nil
	}
	if t.track != nil {
		t.track.Stop()
	}
}

// minSmallArea is the reference area used when the input is already
// smaller than the requested resolution.
const minSmallArea = 160 * 120

// SmallTrackDestination is a track destination for a low-resolution
// simulcast layer. It scales every size it receives by the square root of
// an area ratio so the aspect ratio is kept.
type SmallTrackDestination struct {
	*TrackDestination

	resW, resH int
}

// NewSmallTrackDestination creates a small destination targeting
// width x height.
func NewSmallTrackDestination(ctx *Context, track media.Track, width, height int) *SmallTrackDestination {
	ctx.lock()
	defer ctx.unlock()
	s := &SmallTrackDestination{
		TrackDestination: newTrackDestination(ctx, track, "smallDestination"),
		resW:             width,
		resH:             height,
	}
	s.init(s, s)
	return s
}

func (s *SmallTrackDestination) resize(width, height int) {
	w, h := smallSize(width, height, s.resW, s.resH)
	s.TrackDestination.resize(w, h)
}

// smallSize returns width x height scaled to the area of resW x resH, or to
// 160x120 when the input is not larger than the target.
func smallSize(width, height, resW, resH int) (int, int) {
	big := float64(width) * float64(height)
	if big == 0 {
		return width, height
	}
	small := float64(resW) * float64(resH)
	ratio := big / minSmallArea
	if big > small {
		ratio = big / small
	}
	k := math.Sqrt(ratio)
	return int(float64(width) / k), int(float64(height) / k)
}
