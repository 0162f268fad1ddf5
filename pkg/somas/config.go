// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultAlignment is the device alignment granularity used if none is configured.
const DefaultAlignment = 512

// ConfigEnvVar is the environment variable with the planner configuration, see ParseConfig for its format.
const ConfigEnvVar = "SOMAS_CONFIG"

// Config of the planner.
type Config struct {
	// Alignment unit in bytes: every tensor size is rounded up to it, and so every offset is a multiple of it.
	Alignment int64 `json:"alignment"`

	// WorkspaceMerging places workspace tensors in the same region as every other tensor.
	// If false, they are packed in a separate region appended after the main one.
	WorkspaceMerging bool `json:"workspace_merging"`

	// HazardResolution enables the stream hazard resolver. It can be disabled when execution is
	// known to be single-stream.
	HazardResolution bool `json:"hazard_resolution"`

	// Validate re-checks every invariant of the planned layout after solving.
	Validate bool `json:"validate"`

	// Parallelism for the liveness stage: 0 disables parallelism, -1 is unlimited.
	Parallelism int `json:"parallelism"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Alignment:        DefaultAlignment,
		WorkspaceMerging: true,
		HazardResolution: true,
		Validate:         true,
		Parallelism:      runtime.NumCPU(),
	}
}

// ParseConfig parses a comma-separated list of options on top of DefaultConfig.
//
// Options:
//
//   - "align=<bytes>" or "alignment=<bytes>": alignment unit, must be > 0.
//   - "workspace_merging" / "no_workspace_merging".
//   - "hazards" / "no_hazards": enable/disable the stream hazard resolver.
//   - "validate" / "no_validate".
//   - "parallelism=<n>": number of workers for the liveness stage, 0 to disable, -1 for unlimited.
//   - "sequential": same as "parallelism=0".
//
// Empty options are ignored, so "" returns DefaultConfig.
func ParseConfig(config string) (Config, error) {
	cfg := DefaultConfig()
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		switch key {
		case "align", "alignment":
			if !hasValue {
				return cfg, errors.Errorf("configuration option %q requires a value", key)
			}
			alignment, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return cfg, errors.Wrapf(err, "invalid value for configuration option %q", part)
			}
			cfg.Alignment = alignment
		case "parallelism":
			if !hasValue {
				return cfg, errors.Errorf("configuration option %q requires a value", key)
			}
			parallelism, err := strconv.Atoi(value)
			if err != nil {
				return cfg, errors.Wrapf(err, "invalid value for configuration option %q", part)
			}
			cfg.Parallelism = parallelism
		case "sequential":
			cfg.Parallelism = 0
		case "workspace_merging":
			cfg.WorkspaceMerging = true
		case "no_workspace_merging":
			cfg.WorkspaceMerging = false
		case "hazards":
			cfg.HazardResolution = true
		case "no_hazards":
			cfg.HazardResolution = false
		case "validate":
			cfg.Validate = true
		case "no_validate":
			cfg.Validate = false
		default:
			return cfg, errors.Errorf("unknown configuration option %q for the memory planner", part)
		}
		if hasValue && !isValuedOption(key) {
			return cfg, errors.Errorf("configuration option %q doesn't take a value", key)
		}
	}
	return cfg, cfg.Check()
}

func isValuedOption(key string) bool {
	switch key {
	case "align", "alignment", "parallelism":
		return true
	}
	return false
}

// ConfigFromEnv parses the configuration in $SOMAS_CONFIG, or returns DefaultConfig if it is not set.
func ConfigFromEnv() (Config, error) {
	config, found := os.LookupEnv(ConfigEnvVar)
	if !found {
		return DefaultConfig(), nil
	}
	cfg, err := ParseConfig(config)
	if err != nil {
		return cfg, errors.WithMessagef(err, "parsing $%s=%q", ConfigEnvVar, config)
	}
	return cfg, nil
}

// Check returns an error if the configuration is invalid.
func (c Config) Check() error {
	if c.Alignment <= 0 {
		return errors.Errorf("alignment must be > 0, got %d", c.Alignment)
	}
	return nil
}

// alignUp rounds size up to a multiple of alignment.
func alignUp(size, alignment int64) int64 {
	if rem := size % alignment; rem != 0 {
		return size + alignment - rem
	}
	return size
}
