package vgraph

import "time"

// FrameInfo is a point-in-time diagnostic snapshot of a node.
type FrameInfo struct {
	Name          string
	Timestamp     time.Time
	TotalFrames   uint64
	DroppedFrames int64
	X, Y          int
	Width, Height int
	// FPS is the frame rate since the previous snapshot, truncated.
	FPS int
	// Parents holds the input's snapshot for plain nodes, and one snapshot
	// per occupied slot in ascending zIndex order for mix nodes.
	Parents []FrameInfo
}

// Parent returns the first parent snapshot, if any.
func (fi FrameInfo) Parent() (FrameInfo, bool) {
	if len(fi.Parents) == 0 {
		return FrameInfo{}, false
	}
	return fi.Parents[0], true
}

// fps returns the truncated frame rate between two snapshots.
func fps(prevFrames, frames uint64, prev, now time.Time) int {
	dt := now.Sub(prev).Seconds()
	if dt <= 0 || prev.IsZero() {
		return 0
	}
	return int(float64(frames-prevFrames) / dt)
}
