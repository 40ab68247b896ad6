// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclVariableBlock is a `variable "name" { default = ... }` block.
type hclVariableBlock struct {
	Name    string    `hcl:"name,label"`
	Default *cty.Value `hcl:"default,optional"`
}

// hclHeader is the first decoding pass: variables only.
type hclHeader struct {
	Variables []*hclVariableBlock `hcl:"variable,block"`
	Remain    hcl.Body            `hcl:",remain"`
}

// hclFile is the second pass, evaluated with var.* bound.
type hclFile struct {
	Pipeline hclPipeline `hcl:"pipeline,block"`
}

type hclPipeline struct {
	Name      string   `hcl:"name,label"`
	FrameRate float64  `hcl:"frame_rate,optional"`
	Width     int      `hcl:"width,optional"`
	Height    int      `hcl:"height,optional"`
	Raster    bool     `hcl:"raster,optional"`
	Alpha     bool     `hcl:"alpha,optional"`
	Frames    int      `hcl:"frames,optional"`
	Duration  string   `hcl:"duration,optional"`
	Sources   []Source `hcl:"source,block"`
	Filters   []Filter `hcl:"filter,block"`
	Output    Output   `hcl:"output,block"`
}

// ParseHCL decodes and validates an HCL pipeline. vars override variable
// defaults; strings convert to numbers where an attribute needs one.
func ParseHCL(src []byte, filename string, vars map[string]cty.Value) (*Pipeline, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: failed to parse HCL file %s: %w", filename, diags)
	}
	return decodeHCL(f, filename, vars)
}

// LoadHCL reads an HCL pipeline file.
func LoadHCL(path string, vars map[string]cty.Value) (*Pipeline, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: failed to parse HCL file %s: %w", path, diags)
	}
	return decodeHCL(f, path, vars)
}

func decodeHCL(f *hcl.File, filename string, vars map[string]cty.Value) (*Pipeline, error) {
	var header hclHeader
	if diags := gohcl.DecodeBody(f.Body, nil, &header); diags.HasErrors() {
		return nil, fmt.Errorf("config: failed to decode HCL file %s: %w", filename, diags)
	}

	values := make(map[string]cty.Value, len(header.Variables))
	for _, v := range header.Variables {
		if v.Default == nil || v.Default.IsNull() {
			values[v.Name] = cty.DynamicVal
			continue
		}
		values[v.Name] = *v.Default
	}
	for name, v := range vars {
		if _, ok := values[name]; !ok {
			return nil, fmt.Errorf("config: %s: undeclared variable %q", filename, name)
		}
		values[name] = v
	}
	for name, v := range values {
		if !v.IsKnown() {
			return nil, fmt.Errorf("config: %s: variable %q has no value", filename, name)
		}
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(values)},
	}

	var file hclFile
	if diags := gohcl.DecodeBody(header.Remain, evalCtx, &file); diags.HasErrors() {
		return nil, fmt.Errorf("config: failed to decode HCL file %s: %w", filename, diags)
	}

	hp := file.Pipeline
	p := &Pipeline{
		Name:      hp.Name,
		FrameRate: hp.FrameRate,
		Width:     hp.Width,
		Height:    hp.Height,
		Raster:    hp.Raster,
		Alpha:     hp.Alpha,
		Frames:    hp.Frames,
		Sources:   hp.Sources,
		Filters:   hp.Filters,
		Output:    hp.Output,
	}
	if err := p.Duration.parse(hp.Duration); err != nil {
		return nil, fmt.Errorf("config: %s: %w", filename, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return p, nil
}

// StringVars converts command-line overrides to variable values. HCL
// converts them to numbers or booleans where an attribute needs one.
func StringVars(vars map[string]string) map[string]cty.Value {
	out := make(map[string]cty.Value, len(vars))
	for k, v := range vars {
		out[k] = cty.StringVal(v)
	}
	return out
}
