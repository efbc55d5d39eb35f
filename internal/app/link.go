// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/desk_controller/internal/ble"
	"github.com/relabs-tech/desk_controller/internal/config"
	"github.com/relabs-tech/desk_controller/internal/desk"
)

// deskLink is the connection a controller runs over: the command transport
// plus the height notification stream. Satisfied by the BLE session and by
// the simulated desk.
type deskLink interface {
	desk.Transport
	Subscribe(fn func(frame []byte)) error
	Unsubscribe()
	Close() error
}

const (
	connectTimeout = 10 * time.Second

	// The controller ignores commands for a moment after waking from
	// standby, so the wake stop is followed by a short pause.
	wakePause = 200 * time.Millisecond

	fetchPause = 100 * time.Millisecond

	// Simulated desk speed, roughly what the real motor does.
	mockSpeedMMPerSec = 38.0
)

func openLink(cfg *config.Config, cmds desk.Commands, useMock bool) (deskLink, error) {
	if useMock {
		// Start the simulated desk in the middle of the travel range.
		startMM := int((cfg.HeightLimits.MinCM + cfg.HeightLimits.MaxCM) / 2 * 10)
		mock := desk.NewMockDesk(cmds, startMM, mockSpeedMMPerSec)
		mock.SetCoast(float64(cfg.TuningParams.OvershootMMUp), float64(cfg.TuningParams.OvershootMMDown))
		return mock, nil
	}

	sess, err := ble.Connect(cfg.DeviceAddress, cfg.WriteUUID, cfg.NotifyUUID, connectTimeout)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// attachHeightStream subscribes to height notifications and feeds them into
// the state through a buffered channel, so a burst of notifications never
// blocks the BLE stack. When the channel is full the oldest frame is
// dropped; only the newest height matters.
func attachHeightStream(link deskLink, st *desk.State) error {
	frames := make(chan []byte, 64)

	err := link.Subscribe(func(frame []byte) {
		// The stack may reuse the buffer after the callback returns.
		f := append([]byte(nil), frame...)
		select {
		case frames <- f:
		default:
			select {
			case <-frames:
			default:
			}
			select {
			case frames <- f:
			default:
			}
		}
	})
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case frame := <-frames:
				desk.Apply(st, frame)
			case <-st.Quit():
				return
			}
		}
	}()
	return nil
}

// prepareSession wakes the controller, starts the height stream, and
// requests the current height. The fetch is sent twice; the first one after
// a wake is sometimes swallowed.
func prepareSession(link deskLink, cmds desk.Commands, st *desk.State) error {
	st.SetStatus("Connected. Waking desk...")
	if err := link.WriteCommand(cmds.Stop); err != nil {
		return fmt.Errorf("wake command: %w", err)
	}
	st.Wait(wakePause)

	st.SetStatus("Starting height listener...")
	if err := attachHeightStream(link, st); err != nil {
		return fmt.Errorf("height subscription: %w", err)
	}

	st.SetStatus("Reading current height...")
	if err := link.WriteCommand(cmds.FetchHeight); err != nil {
		return fmt.Errorf("fetch height command: %w", err)
	}
	st.Wait(fetchPause)
	if err := link.WriteCommand(cmds.FetchHeight); err != nil {
		return fmt.Errorf("fetch height command: %w", err)
	}
	return nil
}
