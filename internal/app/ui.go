// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/desk_controller/internal/desk"
)

const (
	clearLine         = "\033[K"
	uiRefreshInterval = 50 * time.Millisecond
)

func cursorUp(n int) string {
	return fmt.Sprintf("\033[%dF", n)
}

// runStatusUI redraws a fixed-height status block in place until the state's
// quit latch is set, then clears it. Runs on the calling goroutine; the
// controller runs elsewhere and drives the state.
func runStatusUI(st *desk.State, title string, showTarget bool) {
	lines := 7
	if showTarget {
		lines = 8
	}
	for i := 0; i < lines; i++ {
		fmt.Println()
	}

	draw := func() {
		snap := st.Snapshot()
		fmt.Print(cursorUp(lines))
		fmt.Printf("%s%s\n", title, clearLine)
		fmt.Printf("%s\n", clearLine)
		if showTarget {
			fmt.Printf("  Target:  %.1f cm%s\n", float64(snap.TargetMM)/10.0, clearLine)
		}
		fmt.Printf("  Current: %.1f cm%s\n", float64(snap.CurrentMM)/10.0, clearLine)
		if showTarget {
			fmt.Printf("  Error:   %.1f cm  %s\n", float64(snap.ErrorMM)/10.0, clearLine)
		} else {
			fmt.Printf("%s\n", clearLine)
		}
		fmt.Printf("%s\n", clearLine)
		fmt.Printf("  Status: %s%s\n", snap.Status, clearLine)
		fmt.Printf("  (Press Ctrl+C to quit)%s\n", clearLine)
	}

	ticker := time.NewTicker(uiRefreshInterval)
	defer ticker.Stop()
	for {
		draw()
		select {
		case <-ticker.C:
		case <-st.Quit():
			draw()
			fmt.Print(cursorUp(lines))
			for i := 0; i < lines; i++ {
				fmt.Printf("%s\n", clearLine)
			}
			fmt.Print(cursorUp(lines))
			return
		}
	}
}
