// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package desk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// MockDesk simulates the motorized desk for development without hardware. It
// integrates movement over wall-clock time: while a move command is latched
// the height advances at speedMMPerSec, and a stop applies the configured
// coast distance instantly. Every accepted command emits a height frame to
// the subscriber, so controllers see telemetry exactly as often as they poll.
type MockDesk struct {
	mu            sync.Mutex
	cmds          Commands
	heightMM      float64
	speedMMPerSec float64
	coastUpMM     float64
	coastDownMM   float64

	direction   int // +1 up, -1 down, 0 stopped
	movingSince time.Time

	notify func([]byte)
	writes [][]byte
	closed bool
}

// NewMockDesk starts the simulated desk at startMM. Coast distances default
// to zero; set them with SetCoast to exercise overshoot handling.
func NewMockDesk(cmds Commands, startMM int, speedMMPerSec float64) *MockDesk {
	return &MockDesk{
		cmds:          cmds,
		heightMM:      float64(startMM),
		speedMMPerSec: speedMMPerSec,
	}
}

// SetCoast configures how far the desk keeps moving after a stop, per
// direction, in mm.
func (d *MockDesk) SetCoast(upMM, downMM float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.coastUpMM = upMM
	d.coastDownMM = downMM
}

// WriteCommand accepts the same payloads a real desk would and reacts to the
// four known commands. Unknown payloads are recorded but otherwise ignored.
func (d *MockDesk) WriteCommand(payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("mock desk: write after close")
	}
	d.writes = append(d.writes, append([]byte(nil), payload...))
	d.advanceLocked(time.Now())

	switch {
	case bytes.Equal(payload, d.cmds.MoveUp):
		d.startLocked(+1)
	case bytes.Equal(payload, d.cmds.MoveDown):
		d.startLocked(-1)
	case bytes.Equal(payload, d.cmds.Stop):
		d.stopLocked()
	case bytes.Equal(payload, d.cmds.FetchHeight):
		// Height is reported below for every command.
	}

	d.emitLocked()
	return nil
}

func (d *MockDesk) startLocked(direction int) {
	if d.direction != direction {
		d.direction = direction
		d.movingSince = time.Now()
	}
}

func (d *MockDesk) stopLocked() {
	if d.direction > 0 {
		d.heightMM += d.coastUpMM
	} else if d.direction < 0 {
		d.heightMM -= d.coastDownMM
	}
	d.direction = 0
	d.clampLocked()
}

// advanceLocked integrates movement since the last event.
func (d *MockDesk) advanceLocked(now time.Time) {
	if d.direction == 0 {
		return
	}
	elapsed := now.Sub(d.movingSince).Seconds()
	d.heightMM += float64(d.direction) * d.speedMMPerSec * elapsed
	d.movingSince = now
	d.clampLocked()
}

func (d *MockDesk) clampLocked() {
	if d.heightMM < 0 {
		d.heightMM = 0
	}
	if d.heightMM > 65535 {
		d.heightMM = 65535
	}
}

// emitLocked sends one height notification frame in the desk wire format.
func (d *MockDesk) emitLocked() {
	if d.notify == nil {
		return
	}
	frame := make([]byte, 0, 7)
	frame = append(frame, heightMarker...)
	frame = binary.BigEndian.AppendUint16(frame, uint16(d.heightMM))
	frame = append(frame, 0x00)
	d.notify(frame)
}

// Subscribe registers the notification handler and immediately reports the
// current height, the way a real desk answers its first height query.
func (d *MockDesk) Subscribe(fn func(frame []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notify = fn
	d.emitLocked()
	return nil
}

func (d *MockDesk) Unsubscribe() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notify = nil
}

func (d *MockDesk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notify = nil
	d.closed = true
	return nil
}

// HeightMM reports the simulated height, advanced to now.
func (d *MockDesk) HeightMM() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advanceLocked(time.Now())
	return d.heightMM
}

// Writes returns a copy of every payload written so far, in order.
func (d *MockDesk) Writes() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.writes))
	copy(out, d.writes)
	return out
}
