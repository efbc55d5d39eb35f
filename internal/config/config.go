// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/relabs-tech/desk_controller/internal/desk"
)

// DefaultPath is where the tools look for the configuration when no -config
// flag is given.
const DefaultPath = "desk_config.json"

// Config holds all application configuration values, loaded from a JSON
// file. The same file is shared by every tool, and the autotune tool writes
// updated tuning parameters back into it.
type Config struct {
	// BLE identity of the desk controller.
	DeviceAddress string `json:"device_address"`
	WriteUUID     string `json:"write_uuid"`
	NotifyUUID    string `json:"notify_uuid"`

	// Raw command payloads as hex strings, exactly as written to the
	// control characteristic.
	Commands CommandsHex `json:"commands"`

	HeightLimits HeightLimits `json:"height_limits"`
	TuningParams TuningParams `json:"tuning_params"`

	// MQTT is optional: with an empty broker the tools run without
	// publishing telemetry.
	MQTT MQTT `json:"mqtt"`
}

type CommandsHex struct {
	Stop        string `json:"stop"`
	MoveUp      string `json:"move_up"`
	MoveDown    string `json:"move_down"`
	FetchHeight string `json:"fetch_height"`
}

// HeightLimits bounds the height arguments accepted on the command line, in
// centimeters, matching how desk heights are quoted by vendors.
type HeightLimits struct {
	MinCM float64 `json:"min_cm"`
	MaxCM float64 `json:"max_cm"`
}

// TuningParams are the closed-loop positioning parameters. The overshoot
// values are what the autotune tool measures and writes back.
type TuningParams struct {
	OvershootMMUp   int     `json:"overshoot_mm_up"`
	OvershootMMDown int     `json:"overshoot_mm_down"`
	FinalMarginMM   int     `json:"final_margin_mm"`
	NudgeCoarseS    float64 `json:"nudge_coarse_s"`
	NudgeFineS      float64 `json:"nudge_fine_s"`
	SettleTimeS     float64 `json:"settle_time_s"`
	NudgeLimit      int     `json:"nudge_limit"`
}

type MQTT struct {
	Broker         string `json:"broker"`
	ClientIDPrefix string `json:"client_id_prefix"`
	TopicPrefix    string `json:"topic_prefix"`
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock for initialization,
//     read lock for Get() allows multiple concurrent readers.
//
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads and validates the configuration file.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DeviceAddress == "" {
		return fmt.Errorf("device_address is required")
	}
	if c.WriteUUID == "" {
		return fmt.Errorf("write_uuid is required")
	}
	if c.NotifyUUID == "" {
		return fmt.Errorf("notify_uuid is required")
	}
	for name, hexCmd := range map[string]string{
		"stop":         c.Commands.Stop,
		"move_up":      c.Commands.MoveUp,
		"move_down":    c.Commands.MoveDown,
		"fetch_height": c.Commands.FetchHeight,
	} {
		if hexCmd == "" {
			return fmt.Errorf("commands.%s is required", name)
		}
		if _, err := hex.DecodeString(hexCmd); err != nil {
			return fmt.Errorf("commands.%s is not valid hex: %w", name, err)
		}
	}
	if c.HeightLimits.MinCM <= 0 || c.HeightLimits.MaxCM <= c.HeightLimits.MinCM {
		return fmt.Errorf("height_limits must satisfy 0 < min_cm < max_cm, got %.1f-%.1f",
			c.HeightLimits.MinCM, c.HeightLimits.MaxCM)
	}
	if c.TuningParams.FinalMarginMM <= 0 {
		return fmt.Errorf("tuning_params.final_margin_mm must be positive")
	}
	if c.TuningParams.NudgeCoarseS <= 0 || c.TuningParams.NudgeFineS <= 0 {
		return fmt.Errorf("tuning_params nudge durations must be positive")
	}
	if c.TuningParams.SettleTimeS <= 0 {
		return fmt.Errorf("tuning_params.settle_time_s must be positive")
	}
	if c.TuningParams.NudgeLimit <= 0 {
		return fmt.Errorf("tuning_params.nudge_limit must be positive")
	}
	return nil
}

// DecodeCommands converts the hex command strings to their byte payloads.
// Load has already verified they are valid hex.
func (c *Config) DecodeCommands() (desk.Commands, error) {
	var cmds desk.Commands
	var err error
	if cmds.Stop, err = hex.DecodeString(c.Commands.Stop); err != nil {
		return desk.Commands{}, fmt.Errorf("commands.stop: %w", err)
	}
	if cmds.MoveUp, err = hex.DecodeString(c.Commands.MoveUp); err != nil {
		return desk.Commands{}, fmt.Errorf("commands.move_up: %w", err)
	}
	if cmds.MoveDown, err = hex.DecodeString(c.Commands.MoveDown); err != nil {
		return desk.Commands{}, fmt.Errorf("commands.move_down: %w", err)
	}
	if cmds.FetchHeight, err = hex.DecodeString(c.Commands.FetchHeight); err != nil {
		return desk.Commands{}, fmt.Errorf("commands.fetch_height: %w", err)
	}
	return cmds, nil
}

// Tuning converts the persisted tuning parameters to controller form.
func (c *Config) Tuning() desk.Tuning {
	return desk.Tuning{
		OvershootUpMM:   c.TuningParams.OvershootMMUp,
		OvershootDownMM: c.TuningParams.OvershootMMDown,
		FinalMarginMM:   c.TuningParams.FinalMarginMM,
		NudgeCoarse:     secondsToDuration(c.TuningParams.NudgeCoarseS),
		NudgeFine:       secondsToDuration(c.TuningParams.NudgeFineS),
		Settle:          secondsToDuration(c.TuningParams.SettleTimeS),
		NudgeLimit:      c.TuningParams.NudgeLimit,
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// SaveTuning writes the measured overshoot values back into the
// configuration file. The original file is first copied to a timestamped
// .bak next to it, and any fields this version of the tool does not know
// about are preserved as-is.
func SaveTuning(configPath string, overshootUpMM, overshootDownMM int) (backupPath string, err error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to read config file: %w", err)
	}

	backupPath = fmt.Sprintf("%s.%s.bak", configPath, time.Now().Format("2006-01-02_150405"))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", configPath, err)
	}
	var tuning map[string]any
	if err := json.Unmarshal(raw["tuning_params"], &tuning); err != nil {
		return "", fmt.Errorf("failed to parse tuning_params: %w", err)
	}
	tuning["overshoot_mm_up"] = overshootUpMM
	tuning["overshoot_mm_down"] = overshootDownMM

	updated, err := json.Marshal(tuning)
	if err != nil {
		return "", fmt.Errorf("failed to encode tuning_params: %w", err)
	}
	raw["tuning_params"] = updated

	out, err := json.MarshalIndent(raw, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configPath, append(out, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return backupPath, nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
