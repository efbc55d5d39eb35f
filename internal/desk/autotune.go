// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package desk

import (
	"fmt"
	"time"
)

// AutotuneResult holds the measured mean overshoot per direction, in mm.
// Positive values mean the desk coasts past the stop point.
type AutotuneResult struct {
	OvershootUpMM   float64
	OvershootDownMM float64
}

// AutotuneParams controls the calibration protocol. The defaults reproduce
// the field-tested procedure; there is normally no reason to change them.
type AutotuneParams struct {
	// Trials per direction.
	Trials int
	// Distance past the setpoint where each trial starts, mm.
	StartMarginMM int
	// Offset for the two-stage relocation: the first stage deliberately
	// stops short (approaching from the far side) so the second stage
	// always reaches the start point moving toward it, mm.
	ApproachOffsetMM int
	// Pause after relocating, before the measured run.
	RelocateSettle time.Duration
	// How long the desk is given to coast after the measured stop.
	CoastWindow time.Duration
	// Pause between trials.
	TrialPause time.Duration
}

func DefaultAutotuneParams() AutotuneParams {
	return AutotuneParams{
		Trials:           3,
		StartMarginMM:    50,
		ApproachOffsetMM: 5,
		RelocateSettle:   1500 * time.Millisecond,
		CoastWindow:      2 * time.Second,
		TrialPause:       time.Second,
	}
}

// Autotuner measures the mechanical overshoot of the desk around a fixed
// setpoint: it repeatedly drives the desk across the setpoint, cuts power at
// the crossing, and records how far the desk coasted.
type Autotuner struct {
	tr         Transport
	cmds       Commands
	st         *State
	setpointMM int
	params     AutotuneParams

	commandInterval time.Duration
	initialTimeout  time.Duration
}

func NewAutotuner(tr Transport, cmds Commands, st *State, setpointMM int, params AutotuneParams) *Autotuner {
	return &Autotuner{
		tr:              tr,
		cmds:            cmds,
		st:              st,
		setpointMM:      setpointMM,
		params:          params,
		commandInterval: defaultCommandInterval,
		initialTimeout:  initialHeightTimeout,
	}
}

// Run performs the full calibration: Trials measured runs upward through the
// setpoint, then Trials downward, and returns the per-direction means.
// Cancellation at any point returns (nil, nil); a partial measurement is
// never reported.
func (a *Autotuner) Run() (*AutotuneResult, error) {
	defer func() {
		_ = a.tr.WriteCommand(a.cmds.Stop)
		a.st.RequestQuit()
	}()

	a.st.SetStatus("Waiting for initial height...")
	if !a.st.AwaitHeightKnown(a.initialTimeout) {
		if a.st.QuitRequested() {
			return nil, nil
		}
		a.st.SetStatus("Error: no height data. Is the desk powered on?")
		return nil, ErrNoTelemetry
	}

	var upSamples, downSamples []float64

	for trial := 1; trial <= a.params.Trials; trial++ {
		mm, done, err := a.runTrial(trial, true)
		if err != nil {
			return nil, err
		}
		if done {
			return nil, nil
		}
		upSamples = append(upSamples, mm)
	}
	for trial := 1; trial <= a.params.Trials; trial++ {
		mm, done, err := a.runTrial(trial, false)
		if err != nil {
			return nil, err
		}
		if done {
			return nil, nil
		}
		downSamples = append(downSamples, mm)
	}

	a.st.SetStatus("Autotune complete.")
	return &AutotuneResult{
		OvershootUpMM:   mean(upSamples),
		OvershootDownMM: mean(downSamples),
	}, nil
}

// runTrial performs one measured run. done=true means the trial was
// cancelled before completing. The returned overshoot is signed: negative if
// the desk stopped short of the setpoint.
func (a *Autotuner) runTrial(trial int, up bool) (overshootMM float64, done bool, err error) {
	dir := "UP"
	startMM := a.setpointMM - a.params.StartMarginMM
	stageMM := startMM - a.params.ApproachOffsetMM
	if !up {
		dir = "DOWN"
		startMM = a.setpointMM + a.params.StartMarginMM
		stageMM = startMM + a.params.ApproachOffsetMM
	}

	// Relocate in two stages so the start point is always reached from the
	// same side regardless of where the previous trial left the desk.
	a.st.SetStatus(fmt.Sprintf("Trial %d/%d %s: relocating to start...", trial, a.params.Trials, dir))
	if done, err = a.moveTo(stageMM, !up); done || err != nil {
		return 0, done, err
	}
	if !a.st.Wait(a.params.RelocateSettle) {
		return 0, true, nil
	}
	if done, err = a.moveTo(startMM, up); done || err != nil {
		return 0, done, err
	}
	if !a.st.Wait(a.params.RelocateSettle) {
		return 0, true, nil
	}

	// Measured run: drive through the setpoint, cut power at the crossing,
	// let the desk coast, then read where it actually stopped.
	a.st.SetStatus(fmt.Sprintf("Trial %d/%d %s: measuring...", trial, a.params.Trials, dir))
	if done, err = a.moveTo(a.setpointMM, up); done || err != nil {
		return 0, done, err
	}
	if !a.st.Wait(a.params.CoastWindow) {
		return 0, true, nil
	}

	settled := a.st.CurrentMM()
	if up {
		overshootMM = float64(settled - a.setpointMM)
	} else {
		overshootMM = float64(a.setpointMM - settled)
	}
	a.st.SetStatus(fmt.Sprintf("Trial %d/%d %s: overshoot %.1f mm", trial, a.params.Trials, dir, overshootMM))

	if !a.st.Wait(a.params.TrialPause) {
		return 0, true, nil
	}
	return overshootMM, false, nil
}

// moveTo drives the desk until the live height crosses targetMM in the given
// direction, then writes a single stop. done=true reports cancellation.
func (a *Autotuner) moveTo(targetMM int, up bool) (done bool, err error) {
	cmd, dir := a.cmds.MoveDown, "DOWN"
	crossed := func(mm int) bool { return mm <= targetMM }
	if up {
		cmd, dir = a.cmds.MoveUp, "UP"
		crossed = func(mm int) bool { return mm >= targetMM }
	}

	for !crossed(a.st.CurrentMM()) {
		if a.st.QuitRequested() {
			return true, nil
		}
		if err := a.tr.WriteCommand(cmd); err != nil {
			a.st.SetStatus(fmt.Sprintf("Error: move %s write failed: %v", dir, err))
			return false, fmt.Errorf("move %s command: %w", dir, err)
		}
		a.st.Wait(a.commandInterval)
	}
	if err := a.tr.WriteCommand(a.cmds.Stop); err != nil {
		return false, fmt.Errorf("stop command: %w", err)
	}
	return a.st.QuitRequested(), nil
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
