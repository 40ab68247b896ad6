// Package vgraph composes live video with a pull-based graph of nodes.
//
// # Overview
//
// A Context owns one drawing surface, backed either by a GPU device
// obtained from a registered Backend or by a software raster canvas. Nodes
// created on the context form a graph: sources produce frames, filters
// such as MirrorNode and PassNode transform them, a MixNode composites
// several inputs, and a DestinationNode presents the result.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/vgraph"
//	    "github.com/gogpu/vgraph/media"
//	    _ "github.com/gogpu/vgraph/gpu" // GPU backend
//	)
//
//	ctx := vgraph.NewContext(vgraph.WithFrameRate(30))
//	if err := ctx.Create(vgraph.CreateOptions{}); err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Destroy("done", nil)
//
//	feed := media.NewFeed()
//	src := vgraph.NewSourceNode(ctx, feed)
//	dst := vgraph.NewDestinationNode(ctx)
//	_ = src.Connect(dst)
//
// # Frame Clock
//
// Connecting an input to a destination arms a timer at the context frame
// rate. Each tick pulls one frame depth-first from the destination toward
// the sources; pixels flow back up as each node renders into its own
// target. A node reports whether it produced a new frame, so an idle
// source costs one check per tick.
//
// # Failure
//
// Construction and rendering failures never panic and are not returned
// from constructors. They destroy the context, which closes every node and
// notifies OnUnavailable observers with a reason and an error.
//
// # Coordinate System
//
// Layouts use node pixels with the origin at the top-left, X increasing
// right and Y increasing down.
package vgraph

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
