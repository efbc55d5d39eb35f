// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package desk

import (
	"sync"
	"time"
)

// State is the shared telemetry state between the control actor (BLE session +
// controller) and any observers (terminal UI, MQTT publisher). All fields live
// behind one mutex so a reader never sees a height without its matching error.
//
// The two latches (quit requested, height known) are closed channels: they
// transition at most once and are never reset, which makes the one field with
// two writers (quit) race-free by construction.
type State struct {
	mu        sync.Mutex
	currentMM int
	targetMM  int
	errorMM   int
	status    string

	quitOnce  sync.Once
	quit      chan struct{}
	knownOnce sync.Once
	known     chan struct{}
}

// Snapshot is one coherent view of the telemetry state.
type Snapshot struct {
	Status    string
	CurrentMM int
	TargetMM  int
	ErrorMM   int
}

// NewState creates the state for one controller session. For positioning runs
// targetMM is the goal height; autotune sessions pass their setpoint so the
// error field tracks distance from it.
func NewState(targetMM int) *State {
	return &State{
		targetMM: targetMM,
		status:   "Initializing...",
		quit:     make(chan struct{}),
		known:    make(chan struct{}),
	}
}

// SetStatus overwrites the human-readable phase description.
func (s *State) SetStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// SetHeight records a decoded height and recomputes the error. Unchanged values
// are dropped, except that the one-time height-known transition (first non-zero
// reading) is never suppressed.
func (s *State) SetHeight(mm int) {
	s.mu.Lock()
	first := s.currentMM == 0
	if mm == s.currentMM && !first {
		s.mu.Unlock()
		return
	}
	s.currentMM = mm
	s.errorMM = s.targetMM - mm
	s.mu.Unlock()

	if first && mm != 0 {
		s.knownOnce.Do(func() { close(s.known) })
	}
}

// CurrentMM returns the last decoded height in millimeters (0 until the first
// reading).
func (s *State) CurrentMM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentMM
}

// ErrorMM returns target minus current height in millimeters.
func (s *State) ErrorMM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorMM
}

// Snapshot returns an atomic copy of all display-relevant fields.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status:    s.status,
		CurrentMM: s.currentMM,
		TargetMM:  s.targetMM,
		ErrorMM:   s.errorMM,
	}
}

// RequestQuit sets the quit latch. Safe to call from any goroutine, any number
// of times.
func (s *State) RequestQuit() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// QuitRequested reports whether the quit latch has been set.
func (s *State) QuitRequested() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// Quit exposes the quit latch for select loops.
func (s *State) Quit() <-chan struct{} {
	return s.quit
}

// AwaitHeightKnown blocks until the first non-zero height has been decoded,
// the quit latch is set, or the timeout expires. Returns true only in the
// first case.
func (s *State) AwaitHeightKnown(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.known:
		return true
	case <-s.quit:
		return false
	case <-timer.C:
		return false
	}
}

// Wait sleeps for d unless the quit latch is set first. Every blocking pause
// in the controllers goes through here so cancellation interrupts settle
// delays, nudge timing, and approach polling immediately. Returns true when
// the full duration elapsed, false when cancelled.
func (s *State) Wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.quit:
		return false
	}
}
