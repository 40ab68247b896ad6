// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zclconf/go-cty/cty"
)

const demoHCL = `
variable "width" {
  default = 32
}

variable "logo" {
  default = "#0000ff"
}

pipeline "demo" {
  frame_rate = 15
  raster     = true
  duration   = "2s"

  source "cam" {
    color  = "#ff0000"
    width  = var.width
    height = 24
  }

  source "logo" {
    color  = var.logo
    width  = 8
    height = 8
    x      = 4
    y      = 4
  }

  filter "flip" {
    kind  = "mirror"
    input = "cam"
  }

  filter "mix" {
    kind = "mix"
    layer "flip" {
      z = 0
    }
    layer "logo" {
      z = 1
    }
  }

  output {
    kind   = "small_track"
    from   = "mix"
    width  = 16
    height = 12
  }
}
`

func TestParseHCL(t *testing.T) {
	got, err := ParseHCL([]byte(demoHCL), "demo.hcl", nil)
	if err != nil {
		t.Fatalf("ParseHCL() error = %v", err)
	}
	if diff := cmp.Diff(demoPipeline(), got); diff != "" {
		t.Errorf("ParseHCL() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHCLVariables(t *testing.T) {
	vars := StringVars(map[string]string{"width": "64", "logo": "#00ff00"})
	got, err := ParseHCL([]byte(demoHCL), "demo.hcl", vars)
	if err != nil {
		t.Fatalf("ParseHCL() error = %v", err)
	}
	if got.Sources[0].Width != 64 {
		t.Errorf("cam width = %d, want 64", got.Sources[0].Width)
	}
	if got.Sources[1].Color != "#00ff00" {
		t.Errorf("logo color = %q, want #00ff00", got.Sources[1].Color)
	}
}

func TestParseHCLErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		vars    map[string]cty.Value
		invalid bool
	}{
		{name: "syntax", src: "pipeline {"},
		{name: "missing pipeline", src: `variable "x" { default = 1 }`},
		{name: "undeclared variable", src: demoHCL, vars: StringVars(map[string]string{"height": "3"})},
		{name: "variable without value", src: `variable "x" {}` + "\n" + demoHCL},
		{name: "bad conversion", src: demoHCL, vars: StringVars(map[string]string{"width": "wide"})},
		{name: "bad duration", src: `pipeline "p" {
  duration = "soon"
  output {
    kind = "track"
    from = "a"
  }
}`},
		{name: "invalid graph", src: `pipeline "p" {
  output {
    kind = "track"
    from = "a"
  }
}`, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHCL([]byte(tt.src), "test.hcl", tt.vars)
			if err == nil {
				t.Fatal("ParseHCL() error = nil")
			}
			if got := errors.Is(err, ErrInvalidPipeline); got != tt.invalid {
				t.Errorf("errors.Is(%v, ErrInvalidPipeline) = %v, want %v", err, got, tt.invalid)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}
	hclPath := write("demo.hcl", demoHCL)
	yamlPath := write("demo.yml", demoYAML)
	txtPath := write("demo.txt", demoYAML)

	for _, path := range []string{hclPath, yamlPath} {
		p, err := Load(path, nil)
		if err != nil {
			t.Fatalf("Load(%s) error = %v", path, err)
		}
		if p.Name != "demo" {
			t.Errorf("Load(%s).Name = %q, want demo", path, p.Name)
		}
	}

	vars := StringVars(map[string]string{"width": "48"})
	if p, err := Load(hclPath, vars); err != nil || p.Sources[0].Width != 48 {
		t.Errorf("Load(hcl, vars) = %v, %v", p, err)
	}
	if _, err := Load(yamlPath, vars); err == nil {
		t.Error("Load(yaml, vars) error = nil")
	}
	if _, err := Load(txtPath, nil); err == nil {
		t.Error("Load(txt) error = nil")
	}
}
