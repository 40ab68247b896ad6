//go:build !statsview

package main

import "io"

func statsviewAvailable() bool { return false }

func launchStatsview(io.Writer) {}
