// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"math"

	"github.com/relabs-tech/desk_controller/internal/config"
	"github.com/relabs-tech/desk_controller/internal/desk"
)

// RunAutotune measures the desk's overshoot around setpointCM and returns
// the per-direction averages. A nil result with a nil error means the run
// was cancelled before completing.
func RunAutotune(setpointCM float64, useMock bool) (*desk.AutotuneResult, error) {
	cfg := config.Get()
	cmds, err := cfg.DecodeCommands()
	if err != nil {
		return nil, err
	}

	setpointMM := int(math.Round(setpointCM * 10))
	st := desk.NewState(setpointMM)
	watchInterrupt(st)

	type tuneResult struct {
		res *desk.AutotuneResult
		err error
	}
	result := make(chan tuneResult, 1)
	go func() {
		res, err := runAutotuneSession(cfg, cmds, st, setpointMM, useMock)
		result <- tuneResult{res, err}
	}()

	runStatusUI(st, "--- Overshoot Autotune ---", false)

	r := <-result
	return r.res, r.err
}

func runAutotuneSession(cfg *config.Config, cmds desk.Commands, st *desk.State, setpointMM int, useMock bool) (*desk.AutotuneResult, error) {
	st.SetStatus(fmt.Sprintf("Connecting to %s...", cfg.DeviceAddress))
	link, err := openLink(cfg, cmds, useMock)
	if err != nil {
		st.SetStatus(fmt.Sprintf("Error: %v", err))
		st.RequestQuit()
		return nil, err
	}
	defer link.Close()
	defer link.Unsubscribe()

	stopTelemetry := startTelemetry(cfg, st, "autotune")
	defer stopTelemetry()

	if err := prepareSession(link, cmds, st); err != nil {
		st.SetStatus(fmt.Sprintf("Error: %v", err))
		st.RequestQuit()
		return nil, err
	}

	tuner := desk.NewAutotuner(link, cmds, st, setpointMM, desk.DefaultAutotuneParams())
	return tuner.Run()
}
