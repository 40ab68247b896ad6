// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Load reads a pipeline file, choosing the format by extension: .hcl for
// HCL, .yaml or .yml for YAML. vars apply to HCL files only.
func Load(path string, vars map[string]cty.Value) (*Pipeline, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".hcl":
		return LoadHCL(path, vars)
	case ".yaml", ".yml":
		if len(vars) > 0 {
			return nil, fmt.Errorf("config: %s: variables need an HCL file", path)
		}
		return LoadYAML(path)
	default:
		return nil, fmt.Errorf("config: %s: unknown format %q", path, ext)
	}
}
