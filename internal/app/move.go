// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/desk_controller/internal/config"
	"github.com/relabs-tech/desk_controller/internal/desk"
)

// RunMove drives the desk to targetCM and blocks until it converges or the
// user cancels with Ctrl+C. The terminal shows a live status block while the
// controller runs in the background.
func RunMove(targetCM float64, useMock bool) error {
	cfg := config.Get()
	cmds, err := cfg.DecodeCommands()
	if err != nil {
		return err
	}

	st := desk.NewState(int(math.Round(targetCM * 10)))
	watchInterrupt(st)

	type moveResult struct {
		outcome desk.Outcome
		err     error
	}
	result := make(chan moveResult, 1)
	go func() {
		outcome, err := runMoveSession(cfg, cmds, st, useMock)
		result <- moveResult{outcome, err}
	}()

	runStatusUI(st, "--- Desk Controller ---", true)

	res := <-result
	if res.err != nil {
		return res.err
	}
	if res.outcome == desk.OutcomeCancelled {
		fmt.Println("Stopped. Exiting.")
		return nil
	}
	fmt.Printf("Done. Desk at %.1f cm (target %.1f cm).\n",
		float64(st.CurrentMM())/10.0, targetCM)
	return nil
}

func runMoveSession(cfg *config.Config, cmds desk.Commands, st *desk.State, useMock bool) (desk.Outcome, error) {
	st.SetStatus(fmt.Sprintf("Connecting to %s...", cfg.DeviceAddress))
	link, err := openLink(cfg, cmds, useMock)
	if err != nil {
		st.SetStatus(fmt.Sprintf("Error: %v", err))
		st.RequestQuit()
		return desk.OutcomeDone, err
	}
	defer link.Close()
	defer link.Unsubscribe()

	stopTelemetry := startTelemetry(cfg, st, "move")
	defer stopTelemetry()

	if err := prepareSession(link, cmds, st); err != nil {
		st.SetStatus(fmt.Sprintf("Error: %v", err))
		st.RequestQuit()
		return desk.OutcomeDone, err
	}

	mover := desk.NewMover(link, cmds, st, cfg.Tuning())
	return mover.Run()
}

// watchInterrupt turns the first Ctrl+C into a quit request so every loop
// winds down and the desk gets its final stop.
func watchInterrupt(st *desk.State) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		signal.Stop(sig)
		st.SetStatus("Manual quit... disconnecting...")
		st.RequestQuit()
	}()
}
