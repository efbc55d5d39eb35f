// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/desk_controller/internal/app"
)

func main() {
	// No config needed: scanning only looks at advertisements.
	if err := app.RunFindDesks(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
