// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package desk

import (
	"errors"
	"fmt"
	"time"
)

// Tuning mirrors the tuning_params block of the configuration file. Overshoot
// values compensate mechanical coasting during the coarse approach; the nudge
// parameters drive the fine-correction loop afterwards.
type Tuning struct {
	OvershootUpMM   int
	OvershootDownMM int
	FinalMarginMM   int
	NudgeCoarse     time.Duration
	NudgeFine       time.Duration
	Settle          time.Duration
	NudgeLimit      int
}

// Outcome classifies how a controller run ended. Only meaningful when the
// accompanying error is nil.
type Outcome int

const (
	// OutcomeDone covers both convergence within the final margin and a
	// best-effort exit after the nudge limit is exhausted; the residual
	// error is left in the state for the caller to judge.
	OutcomeDone Outcome = iota
	OutcomeCancelled
)

// ErrNoTelemetry means the desk never reported a height after connecting.
var ErrNoTelemetry = errors.New("no height telemetry from desk")

const (
	initialHeightTimeout = 10 * time.Second

	// The actuator needs sustained signaling to keep moving and BLE writes
	// may be dropped, so move commands are re-issued on this interval.
	defaultCommandInterval = 100 * time.Millisecond

	// Errors at or below this use the fine nudge duration (5 mm = 0.5 cm).
	fineNudgeThresholdMM = 5
)

// Mover drives the desk to the target height recorded in the state:
// coarse approach with overshoot compensation, a double stop, then up to
// NudgeLimit timed nudges.
type Mover struct {
	tr   Transport
	cmds Commands
	st   *State
	tun  Tuning

	commandInterval time.Duration
	initialTimeout  time.Duration
}

func NewMover(tr Transport, cmds Commands, st *State, tun Tuning) *Mover {
	return &Mover{
		tr:              tr,
		cmds:            cmds,
		st:              st,
		tun:             tun,
		commandInterval: defaultCommandInterval,
		initialTimeout:  initialHeightTimeout,
	}
}

// Run executes the positioning state machine. On every exit path, including
// errors, one final stop command is written so the actuator is never left in
// motion, and the quit latch is set so observers shut down.
func (m *Mover) Run() (Outcome, error) {
	defer func() {
		_ = m.tr.WriteCommand(m.cmds.Stop)
		m.st.RequestQuit()
	}()

	// --- Await initial height ---
	m.st.SetStatus("Waiting for initial height...")
	if !m.st.AwaitHeightKnown(m.initialTimeout) {
		if m.st.QuitRequested() {
			return OutcomeCancelled, nil
		}
		m.st.SetStatus("Error: no height data. Is the desk powered on?")
		return OutcomeDone, ErrNoTelemetry
	}

	// --- Coarse approach ---
	// Direction and compensation are decided once, from the initial reading.
	snap := m.st.Snapshot()
	var (
		label   string
		moveCmd []byte
		crossed func(currentMM int) bool
	)
	if snap.CurrentMM > snap.TargetMM {
		boundary := snap.TargetMM + m.tun.OvershootDownMM
		label, moveCmd = "DOWN", m.cmds.MoveDown
		crossed = func(mm int) bool { return mm <= boundary }
		m.st.SetStatus(fmt.Sprintf("Moving DOWN... (compensation %d mm)", m.tun.OvershootDownMM))
	} else {
		boundary := snap.TargetMM - m.tun.OvershootUpMM
		label, moveCmd = "UP", m.cmds.MoveUp
		crossed = func(mm int) bool { return mm >= boundary }
		m.st.SetStatus(fmt.Sprintf("Moving UP... (compensation %d mm)", m.tun.OvershootUpMM))
	}

	for !crossed(m.st.CurrentMM()) && !m.st.QuitRequested() {
		if err := m.tr.WriteCommand(moveCmd); err != nil {
			m.st.SetStatus(fmt.Sprintf("Error: move %s write failed: %v", label, err))
			return OutcomeDone, fmt.Errorf("move %s command: %w", label, err)
		}
		m.st.Wait(m.commandInterval)
	}
	if m.st.QuitRequested() {
		return OutcomeCancelled, nil
	}

	// --- Stopping ---
	// A single stop write is unreliable on some controllers; the retry is
	// required, not cosmetic.
	m.st.SetStatus("Fast approach complete. Stopping...")
	if err := m.tr.WriteCommand(m.cmds.Stop); err != nil {
		return OutcomeDone, fmt.Errorf("stop command: %w", err)
	}
	m.st.Wait(m.commandInterval)
	if err := m.tr.WriteCommand(m.cmds.Stop); err != nil {
		return OutcomeDone, fmt.Errorf("stop command: %w", err)
	}

	// --- Nudge loop ---
	for nudge := 1; nudge <= m.tun.NudgeLimit; nudge++ {
		if m.st.QuitRequested() {
			return OutcomeCancelled, nil
		}
		if abs(m.st.ErrorMM()) <= m.tun.FinalMarginMM {
			break
		}
		m.st.SetStatus(fmt.Sprintf("Waiting to settle... (nudge %d/%d)", nudge, m.tun.NudgeLimit))
		if !m.st.Wait(m.tun.Settle) {
			return OutcomeCancelled, nil
		}

		errMM := m.st.ErrorMM()
		if abs(errMM) <= m.tun.FinalMarginMM {
			break
		}

		dur, detail := m.tun.NudgeCoarse, "coarse"
		if abs(errMM) <= fineNudgeThresholdMM {
			dur, detail = m.tun.NudgeFine, "fine"
		}
		cmd, dir := m.cmds.MoveDown, "DOWN"
		if errMM > 0 {
			cmd, dir = m.cmds.MoveUp, "UP"
		}
		m.st.SetStatus(fmt.Sprintf("Nudging %s... (%s %s)", dir, detail, dur))

		if err := m.tr.WriteCommand(cmd); err != nil {
			return OutcomeDone, fmt.Errorf("nudge %s command: %w", dir, err)
		}
		m.st.Wait(dur)
		if err := m.tr.WriteCommand(m.cmds.Stop); err != nil {
			return OutcomeDone, fmt.Errorf("stop command: %w", err)
		}
	}

	m.st.SetStatus("Target height reached. Complete.")
	return OutcomeDone, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
