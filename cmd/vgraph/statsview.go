//go:build statsview

package main

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const statsviewAddr = "localhost:12600"

func statsviewAvailable() bool { return true }

// launchStatsview serves runtime charts at statsviewAddr/debug/statsview.
func launchStatsview(w io.Writer) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(statsviewAddr))
		statsview.New().Start()
	}()
	fmt.Fprintf(w, "stats server available at %s/debug/statsview\n", statsviewAddr)
}
