// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/png" // PNG sources
	"os"
	"sync"

	_ "golang.org/x/image/bmp"  // BMP sources
	_ "golang.org/x/image/tiff" // TIFF sources
	_ "golang.org/x/image/webp" // WebP sources

	"github.com/gogpu/vgraph"
	"github.com/gogpu/vgraph/media"
)

// ErrUnavailable is returned by Build when the context failed while the
// graph was assembled.
var ErrUnavailable = errors.New("config: context unavailable")

// Graph is a built pipeline.
type Graph struct {
	Pipeline *Pipeline
	Context  *vgraph.Context
	// Nodes holds every source and filter by name.
	Nodes map[string]vgraph.Node
	// Output is the destination node.
	Output vgraph.Node
	// Track receives frames for track outputs, nil otherwise.
	Track *media.MemoryTrack

	mu     sync.Mutex
	reason string
	err    error
	cancel func()
}

// Build creates a context for p and wires its nodes. opts are applied
// after the pipeline's own context options.
func Build(p *Pipeline, opts ...vgraph.ContextOption) (*Graph, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	copts := []vgraph.ContextOption{vgraph.WithName(p.Name)}
	if p.FrameRate > 0 {
		copts = append(copts, vgraph.WithFrameRate(p.FrameRate))
	}
	if p.Width > 0 && p.Height > 0 {
		copts = append(copts, vgraph.WithSize(p.Width, p.Height))
	}
	copts = append(copts, opts...)

	g := &Graph{
		Pipeline: p,
		Context:  vgraph.NewContext(copts...),
		Nodes:    make(map[string]vgraph.Node),
	}
	g.cancel = g.Context.OnUnavailable(g.unavailable)

	if err := g.Context.Create(vgraph.CreateOptions{Alpha: p.Alpha, PreferRaster: p.Raster}); err != nil {
		g.Close()
		return nil, fmt.Errorf("config: pipeline %q: %w", p.Name, err)
	}

	if err := g.build(); err != nil {
		g.Close()
		return nil, fmt.Errorf("config: pipeline %q: %w", p.Name, err)
	}
	if err := g.Err(); err != nil {
		g.Close()
		return nil, fmt.Errorf("config: pipeline %q: %w", p.Name, err)
	}
	return g, nil
}

func (g *Graph) build() error {
	p := g.Pipeline
	for _, s := range p.Sources {
		img, err := sourceImage(s)
		if err != nil {
			return err
		}
		n := vgraph.NewSourceNode(g.Context, &media.Still{Image: img})
		n.SetPosition(s.X, s.Y)
		g.Nodes[s.Name] = n
	}

	for _, f := range p.Filters {
		var n vgraph.Node
		switch f.Kind {
		case KindMirror:
			n = vgraph.NewMirrorNode(g.Context)
		case KindPass:
			nopts := vgraph.DefaultNodeOptions()
			nopts.Name = f.Name
			// Raster contexts copy through the sub-surface.
			nopts.CreateRaster = true
			if f.Vertex != "" {
				nopts.UseDefaultProgram = false
				nopts.VertexShader = f.Vertex
				nopts.FragmentShader = f.Fragment
			}
			n = vgraph.NewPassNode(g.Context, nopts)
		case KindMix:
			mix := vgraph.NewMixNode(g.Context)
			for _, l := range f.Layers {
				layout := vgraph.Layout{X: l.X, Y: l.Y, Width: l.Width, Height: l.Height, ZIndex: l.Z}
				if err := g.Nodes[l.From].ConnectMix(mix, layout); err != nil {
					return fmt.Errorf("layer %q: %w", l.From, err)
				}
			}
			n = mix
		}
		n.SetPosition(f.X, f.Y)
		if f.Input != "" {
			if err := g.Nodes[f.Input].Connect(n); err != nil {
				return fmt.Errorf("filter %q: %w", f.Name, err)
			}
		}
		g.Nodes[f.Name] = n
	}

	switch p.Output.Kind {
	case OutputDestination:
		g.Output = vgraph.NewDestinationNode(g.Context)
	case OutputTrack:
		g.Track = media.NewMemoryTrack()
		g.Output = vgraph.NewTrackDestination(g.Context, g.Track)
	case OutputSmallTrack:
		g.Track = media.NewMemoryTrack()
		g.Output = vgraph.NewSmallTrackDestination(g.Context, g.Track, p.Output.Width, p.Output.Height)
	}
	if err := g.Nodes[p.Output.From].Connect(g.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func (g *Graph) unavailable(reason string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err == nil {
		g.reason, g.err = reason, err
	}
}

// Err returns the first failure reported by the context, or nil.
func (g *Graph) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, g.reason, g.err)
}

// Close destroys the context and every node on it.
func (g *Graph) Close() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.Context.Destroy("pipeline closed", nil)
}

func sourceImage(s Source) (image.Image, error) {
	if s.Image == "" {
		c, err := ParseColor(s.Color)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", s.Name, err)
		}
		img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
		draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
		if s.Text == "" {
			return img, nil
		}
		tc := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		if s.TextColor != "" {
			if tc, err = ParseColor(s.TextColor); err != nil {
				return nil, fmt.Errorf("source %q: %w", s.Name, err)
			}
		}
		if err := drawLabel(img, s.Text, s.FontSize, tc); err != nil {
			return nil, fmt.Errorf("source %q: %w", s.Name, err)
		}
		return img, nil
	}

	f, err := os.Open(s.Image)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", s.Name, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("source %q: failed to decode %s: %w", s.Name, s.Image, err)
	}
	return img, nil
}
