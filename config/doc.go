// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package config describes video graphs declaratively and builds them.
//
// A Pipeline lists sources, filters and one output. It can be written in
// YAML:
//
//	name: demo
//	frame_rate: 30
//	sources:
//	  - name: cam
//	    color: "#ff0000"
//	    width: 320
//	    height: 240
//	filters:
//	  - name: flip
//	    kind: mirror
//	    input: cam
//	output:
//	  kind: track
//	  from: flip
//
// or in HCL, where variable defaults can be overridden at load time:
//
//	variable "width" { default = 320 }
//
//	pipeline "demo" {
//	  frame_rate = 30
//	  source "cam" {
//	    color  = "#ff0000"
//	    width  = var.width
//	    height = 240
//	  }
//	  filter "flip" {
//	    kind  = "mirror"
//	    input = "cam"
//	  }
//	  output {
//	    kind = "track"
//	    from = "flip"
//	  }
//	}
//
// Sources are image files (PNG, BMP, TIFF, WebP) or solid colors, and a
// color source may carry a centered text label.
//
// Every node must be declared after the nodes it reads from, and each
// source or filter feeds exactly one consumer. Build turns a validated
// Pipeline into a running Graph.
package config
