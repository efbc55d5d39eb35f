package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/desk_controller/internal/ble"
)

const scanDuration = 10 * time.Second

// RunFindDesks scans for desk controllers advertising a known service UUID
// and prints each one as it appears.
func RunFindDesks() error {
	fmt.Printf("Scanning for desk controllers for %v...\n", scanDuration)
	fmt.Println("Make sure your desk is powered on and not connected to your phone.")
	fmt.Println()

	found, err := ble.ScanForDesks(scanDuration, func(d ble.Discovery) {
		name := d.Name
		if name == "" {
			name = "Unknown"
		}
		fmt.Println("--- Found a Desk Controller! ---")
		fmt.Printf("  Name:    %s\n", name)
		fmt.Printf("  Address: %s\n", d.Address)
		fmt.Printf("  RSSI:    %d dBm\n", d.RSSI)
		fmt.Printf("  UUID:    %s\n", d.ServiceUUID)
		fmt.Println("----------------------------------")
		fmt.Println()
	})
	if err != nil {
		return err
	}

	if found == 0 {
		fmt.Println("No desk controllers were found.")
	}
	return nil
}
