// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ble

import (
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// Session is an established connection to the desk controller with the
// write and notify characteristics resolved. It satisfies the transport
// interface the controllers write commands through.
type Session struct {
	device     bluetooth.Device
	writeChar  bluetooth.DeviceCharacteristic
	notifyChar bluetooth.DeviceCharacteristic

	closeOnce sync.Once
}

// Connect enables the default adapter, connects to the desk at the given MAC
// address, and resolves the two GATT characteristics the protocol uses.
func Connect(deviceAddress, writeUUID, notifyUUID string, timeout time.Duration) (*Session, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE adapter: %w", err)
	}

	mac, err := bluetooth.ParseMAC(deviceAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid device address %q: %w", deviceAddress, err)
	}
	wUUID, err := bluetooth.ParseUUID(writeUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid write UUID %q: %w", writeUUID, err)
	}
	nUUID, err := bluetooth.ParseUUID(notifyUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid notify UUID %q: %w", notifyUUID, err)
	}

	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}
	device, err := adapter.Connect(addr, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", deviceAddress, err)
	}

	s := &Session{device: device}
	if err := s.resolveCharacteristics(wUUID, nUUID); err != nil {
		_ = device.Disconnect()
		return nil, err
	}
	return s, nil
}

// resolveCharacteristics walks every service on the device looking for the
// write and notify characteristics. Some desk controllers put them in
// separate vendor services, so all services are searched.
func (s *Session) resolveCharacteristics(writeUUID, notifyUUID bluetooth.UUID) error {
	services, err := s.device.DiscoverServices(nil)
	if err != nil {
		return fmt.Errorf("service discovery failed: %w", err)
	}

	var foundWrite, foundNotify bool
	for _, svc := range services {
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return fmt.Errorf("characteristic discovery failed: %w", err)
		}
		for _, ch := range chars {
			switch ch.UUID() {
			case writeUUID:
				s.writeChar = ch
				foundWrite = true
			case notifyUUID:
				s.notifyChar = ch
				foundNotify = true
			}
		}
	}
	if !foundWrite {
		return fmt.Errorf("write characteristic %s not found on device", writeUUID.String())
	}
	if !foundNotify {
		return fmt.Errorf("notify characteristic %s not found on device", notifyUUID.String())
	}
	return nil
}

// WriteCommand sends one command payload without response, the write mode
// the desk protocol expects.
func (s *Session) WriteCommand(payload []byte) error {
	if _, err := s.writeChar.WriteWithoutResponse(payload); err != nil {
		return fmt.Errorf("characteristic write failed: %w", err)
	}
	return nil
}

// Subscribe enables notifications on the height characteristic. The callback
// runs on the BLE stack's goroutine and must not block.
func (s *Session) Subscribe(fn func(frame []byte)) error {
	if err := s.notifyChar.EnableNotifications(fn); err != nil {
		return fmt.Errorf("failed to enable notifications: %w", err)
	}
	return nil
}

// Unsubscribe stops height notifications. Errors are ignored since this
// only runs during teardown when the link may already be gone.
func (s *Session) Unsubscribe() {
	_ = s.notifyChar.EnableNotifications(nil)
}

// Close disconnects from the desk. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.device.Disconnect()
	})
	return err
}
