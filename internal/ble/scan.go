// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ble

import (
	"fmt"
	"time"

	"tinygo.org/x/bluetooth"
)

// Advertised service UUIDs used as the fingerprint of known desk
// controllers.
var knownDeskServiceUUIDs = []string{
	"0000ff12-0000-1000-8000-00805f9b34fb",
	"0000fe60-0000-1000-8000-00805f9b34fb",
}

// Discovery describes one desk controller seen during a scan.
type Discovery struct {
	Name        string
	Address     string
	RSSI        int16
	ServiceUUID string
}

// ScanForDesks scans for the given duration and calls onFound once per desk
// controller whose advertisement carries a known service UUID. It returns
// the number of distinct desks found.
func ScanForDesks(timeout time.Duration, onFound func(Discovery)) (int, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return 0, fmt.Errorf("failed to enable BLE adapter: %w", err)
	}

	fingerprints := make([]bluetooth.UUID, 0, len(knownDeskServiceUUIDs))
	for _, s := range knownDeskServiceUUIDs {
		uuid, err := bluetooth.ParseUUID(s)
		if err != nil {
			return 0, fmt.Errorf("invalid desk service UUID %q: %w", s, err)
		}
		fingerprints = append(fingerprints, uuid)
	}

	timer := time.AfterFunc(timeout, func() {
		_ = adapter.StopScan()
	})
	defer timer.Stop()

	seen := make(map[string]bool)
	err := adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		addr := result.Address.String()
		if seen[addr] {
			return
		}
		for _, uuid := range fingerprints {
			if result.HasServiceUUID(uuid) {
				seen[addr] = true
				onFound(Discovery{
					Name:        result.LocalName(),
					Address:     addr,
					RSSI:        result.RSSI,
					ServiceUUID: uuid.String(),
				})
				break
			}
		}
	})
	if err != nil {
		return len(seen), fmt.Errorf("scan failed: %w", err)
	}
	return len(seen), nil
}
