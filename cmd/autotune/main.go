// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/relabs-tech/desk_controller/internal/app"
	"github.com/relabs-tech/desk_controller/internal/config"
)

// The autotune drives 5cm past the setpoint in both directions, so the
// setpoint must sit well inside the travel range.
const setpointMarginCM = 10.0

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <setpoint_cm>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Example: sudo %s 90.0\n\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to configuration file")
	useMock := flag.Bool("mock", false, "use a simulated desk instead of BLE")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	setpointCM, err := strconv.ParseFloat(flag.Arg(0), 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: '%s' is not a valid height.\n", flag.Arg(0))
		os.Exit(1)
	}

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	limits := cfg.HeightLimits
	if setpointCM < limits.MinCM+setpointMarginCM || setpointCM > limits.MaxCM-setpointMarginCM {
		fmt.Fprintf(os.Stderr, "Error: Setpoint must be at least %gcm within the height limits (%g-%g cm).\n",
			setpointMarginCM, limits.MinCM, limits.MaxCM)
		fmt.Fprintf(os.Stderr, "Please choose a setpoint between %g and %g.\n",
			limits.MinCM+setpointMarginCM, limits.MaxCM-setpointMarginCM)
		os.Exit(1)
	}

	result, err := app.RunAutotune(setpointCM, *useMock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if result == nil {
		fmt.Println("Autotune cancelled. Config file not updated.")
		return
	}

	fmt.Println()
	fmt.Println("--- Autotune Results ---")
	fmt.Printf("  Avg. UP Overshoot:   %.2f cm (%.0f mm)\n", result.OvershootUpMM/10.0, result.OvershootUpMM)
	fmt.Printf("  Avg. DOWN Overshoot: %.2f cm (%.0f mm)\n", result.OvershootDownMM/10.0, result.OvershootDownMM)

	fmt.Printf("\nDo you want to update '%s' with these values? (y/n): ", *configPath)
	reader := bufio.NewReader(os.Stdin)
	choice, err := reader.ReadString('\n')
	if err != nil || strings.ToLower(strings.TrimSpace(choice)) != "y" {
		fmt.Println("\nConfig file not updated.")
		return
	}

	upMM := int(math.Round(result.OvershootUpMM))
	downMM := int(math.Round(result.OvershootDownMM))
	backup, err := config.SaveTuning(*configPath, upMM, downMM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nError updating config file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nBackup of original config saved to:\n%s\n", backup)
	fmt.Printf("\nSuccessfully updated '%s' with new parameters.\n", *configPath)
}
