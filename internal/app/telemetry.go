// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/desk_controller/internal/config"
	"github.com/relabs-tech/desk_controller/internal/desk"
)

// HeightSample is the telemetry payload published while a controller runs.
// Heights are in centimeters to match how they are quoted on the CLI.
type HeightSample struct {
	HeightCM float64 `json:"height_cm"`
	TargetCM float64 `json:"target_cm"`
	ErrorCM  float64 `json:"error_cm"`
	Status   string  `json:"status"`
	Time     string  `json:"time"`
}

const telemetryInterval = 250 * time.Millisecond

func sampleFromSnapshot(snap desk.Snapshot) HeightSample {
	return HeightSample{
		HeightCM: float64(snap.CurrentMM) / 10.0,
		TargetCM: float64(snap.TargetMM) / 10.0,
		ErrorCM:  float64(snap.ErrorMM) / 10.0,
		Status:   snap.Status,
		Time:     time.Now().Format(time.RFC3339),
	}
}

// startTelemetry publishes height samples to MQTT while the state is live.
// With no broker configured it is a no-op. The returned function publishes
// one final retained sample and disconnects; always call it.
func startTelemetry(cfg *config.Config, st *desk.State, role string) func() {
	if cfg.MQTT.Broker == "" {
		return func() {}
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID(cfg.MQTT.ClientIDPrefix + "-" + role + "-publisher")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		// Telemetry is best effort: the desk still moves without a broker.
		log.Printf("telemetry: MQTT connect failed, continuing without: %v", token.Error())
		return func() {}
	}
	log.Printf("telemetry: connected to MQTT broker at %s", cfg.MQTT.Broker)

	topic := cfg.MQTT.TopicPrefix + "/height"
	publish := func() {
		payload, err := json.Marshal(sampleFromSnapshot(st.Snapshot()))
		if err != nil {
			log.Printf("telemetry: marshal error: %v", err)
			return
		}
		if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("telemetry: publish error: %v", token.Error())
		}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(telemetryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				publish()
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		publish()
		client.Disconnect(250)
	}
}
