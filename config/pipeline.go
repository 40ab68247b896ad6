// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Filter kinds.
const (
	KindMirror = "mirror"
	KindPass   = "pass"
	KindMix    = "mix"
)

// Output kinds.
const (
	OutputDestination = "destination"
	OutputTrack       = "track"
	OutputSmallTrack  = "small_track"
)

// ErrInvalidPipeline wraps every Validate failure.
var ErrInvalidPipeline = errors.New("config: invalid pipeline")

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Pipeline is a declarative video graph.
type Pipeline struct {
	Name string `yaml:"name"`
	// FrameRate of the context. Zero means the vgraph default.
	FrameRate float64 `yaml:"frame_rate"`
	// Width and Height of the surface before the first frame arrives.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Raster skips GPU backends.
	Raster bool `yaml:"raster"`
	Alpha  bool `yaml:"alpha"`

	// Frames and Duration bound a run. Frames wins when both are set.
	Frames   int      `yaml:"frames"`
	Duration Duration `yaml:"duration"`

	Sources []Source `yaml:"sources"`
	Filters []Filter `yaml:"filters"`
	Output  Output   `yaml:"output"`
}

// Source produces frames from a still image file or a solid color.
type Source struct {
	Name string `yaml:"name" hcl:"name,label"`
	// Image is a PNG, BMP, TIFF or WebP file.
	Image string `yaml:"image" hcl:"image,optional"`
	// Color is "#rrggbb" or "#rrggbbaa", used when Image is empty.
	Color  string `yaml:"color" hcl:"color,optional"`
	Width  int    `yaml:"width" hcl:"width,optional"`
	Height int    `yaml:"height" hcl:"height,optional"`

	// Text is drawn centered over a color source.
	Text      string  `yaml:"text" hcl:"text,optional"`
	TextColor string  `yaml:"text_color" hcl:"text_color,optional"`
	FontSize  float64 `yaml:"font_size" hcl:"font_size,optional"`

	// X and Y position the node; mixes use them as layout defaults.
	X int `yaml:"x" hcl:"x,optional"`
	Y int `yaml:"y" hcl:"y,optional"`
}

// Filter transforms one input, or composites several for KindMix.
type Filter struct {
	Name  string `yaml:"name" hcl:"name,label"`
	Kind  string `yaml:"kind" hcl:"kind"`
	Input string `yaml:"input" hcl:"input,optional"`
	// Layers feed a mix.
	Layers []Layer `yaml:"layers" hcl:"layer,block"`
	// Vertex and Fragment are WGSL sources for KindPass. Empty means the
	// default program.
	Vertex   string `yaml:"vertex" hcl:"vertex,optional"`
	Fragment string `yaml:"fragment" hcl:"fragment,optional"`
	X        int    `yaml:"x" hcl:"x,optional"`
	Y        int    `yaml:"y" hcl:"y,optional"`
}

// Layer places one mix input. Zero geometry falls back to the input node.
type Layer struct {
	From   string `yaml:"from" hcl:"from,label"`
	X      int    `yaml:"x" hcl:"x,optional"`
	Y      int    `yaml:"y" hcl:"y,optional"`
	Width  int    `yaml:"width" hcl:"width,optional"`
	Height int    `yaml:"height" hcl:"height,optional"`
	Z      int    `yaml:"z" hcl:"z"`
}

// Output is the destination of the graph.
type Output struct {
	Kind string `yaml:"kind" hcl:"kind"`
	From string `yaml:"from" hcl:"from"`
	// Width and Height are the target resolution of OutputSmallTrack.
	Width  int `yaml:"width" hcl:"width,optional"`
	Height int `yaml:"height" hcl:"height,optional"`
}

// Validate checks names, references and kinds.
func (p *Pipeline) Validate() error {
	if p.FrameRate < 0 {
		return invalid("negative frame rate %v", p.FrameRate)
	}
	if p.Width < 0 || p.Height < 0 {
		return invalid("negative size %dx%d", p.Width, p.Height)
	}
	if p.Frames < 0 || p.Duration < 0 {
		return invalid("negative run length")
	}
	if len(p.Sources) == 0 {
		return invalid("no sources")
	}

	declared := make(map[string]bool)
	consumed := make(map[string]string)
	consume := func(name, by string) error {
		if !declared[name] {
			return invalid("%s reads %q before it is declared", by, name)
		}
		if prev, ok := consumed[name]; ok {
			return invalid("%q feeds both %s and %s", name, prev, by)
		}
		consumed[name] = by
		return nil
	}
	declare := func(name string) error {
		if name == "" {
			return invalid("unnamed node")
		}
		if declared[name] {
			return invalid("duplicate node %q", name)
		}
		declared[name] = true
		return nil
	}

	for _, s := range p.Sources {
		if err := declare(s.Name); err != nil {
			return err
		}
		if s.Image == "" {
			if s.Width <= 0 || s.Height <= 0 {
				return invalid("source %q: color sources need a size", s.Name)
			}
			if _, err := ParseColor(s.Color); err != nil {
				return invalid("source %q: %v", s.Name, err)
			}
		}
		if s.Text != "" {
			if s.Image != "" {
				return invalid("source %q: text needs a color source", s.Name)
			}
			if s.FontSize < 0 {
				return invalid("source %q: negative font size", s.Name)
			}
			if s.TextColor != "" {
				if _, err := ParseColor(s.TextColor); err != nil {
					return invalid("source %q: %v", s.Name, err)
				}
			}
		}
	}
	for _, f := range p.Filters {
		if err := declare(f.Name); err != nil {
			return err
		}
		switch f.Kind {
		case KindMirror, KindPass:
			if len(f.Layers) > 0 {
				return invalid("filter %q: only mixes have layers", f.Name)
			}
			if err := consume(f.Input, "filter "+strconv.Quote(f.Name)); err != nil {
				return err
			}
			if (f.Vertex == "") != (f.Fragment == "") {
				return invalid("filter %q: custom program needs both vertex and fragment shaders", f.Name)
			}
		case KindMix:
			if f.Input != "" {
				return invalid("filter %q: mixes take layers, not input", f.Name)
			}
			if len(f.Layers) == 0 {
				return invalid("filter %q: mix without layers", f.Name)
			}
			z := make(map[int]bool)
			for _, l := range f.Layers {
				if z[l.Z] {
					return invalid("filter %q: duplicate z %d", f.Name, l.Z)
				}
				z[l.Z] = true
				if err := consume(l.From, "mix "+strconv.Quote(f.Name)); err != nil {
					return err
				}
			}
		default:
			return invalid("filter %q: unknown kind %q", f.Name, f.Kind)
		}
	}

	switch p.Output.Kind {
	case OutputDestination, OutputTrack:
	case OutputSmallTrack:
		if p.Output.Width <= 0 || p.Output.Height <= 0 {
			return invalid("small track output needs a resolution")
		}
	default:
		return invalid("unknown output kind %q", p.Output.Kind)
	}
	return consume(p.Output.From, "output")
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPipeline, fmt.Sprintf(format, args...))
}

// ParseColor parses "#rrggbb" or "#rrggbbaa" into a premultiplied color.
func ParseColor(s string) (color.RGBA, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || (len(hex) != 6 && len(hex) != 8) {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	c := color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	return color.RGBAModel.Convert(c).(color.RGBA), nil
}
