// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/relabs-tech/desk_controller/internal/app"
	"github.com/relabs-tech/desk_controller/internal/config"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <height_in_cm>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Example: sudo %s 88.5\n\n", os.Args[0])
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
	targetCM, err := strconv.ParseFloat(flag.Arg(0), 64)
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
	if targetCM < limits.MinCM || targetCM > limits.MaxCM {
		fmt.Fprintf(os.Stderr, "Error: Height %gcm is outside valid range (%g-%g).\n",
			targetCM, limits.MinCM, limits.MaxCM)
		os.Exit(1)
	}

	if err := app.RunMove(targetCM, *useMock); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
