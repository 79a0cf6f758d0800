/*
Package config provides type-safe configuration extraction from map[string]any.

# Overview

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values.
This is useful for extracting execution settings from YAML/JSON structures
without verbose type assertions and nil checks.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "max_concurrency": 4,
	    "metrics":         true,
	    "journal":         map[string]any{"path": "./journal.db"},
	})

	workers := cfg.Int("max_concurrency", 8)             // 4
	metrics := cfg.Bool("metrics", false)                // true
	path := cfg.Section("journal").String("path", "")    // "./journal.db"

# Type Coercion

Numeric types handle reasonable conversions:
  - int from int64 and float64 (only without fractional part)
  - Duration from strings ("30s"), numbers (seconds), or time.Duration

All methods return the default value if the key is missing or the value
cannot be converted to the requested type.

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("framegraph.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	// Or load from bytes
	cfg, err = config.FromYAML(yamlBytes)
	cfg, err = config.FromJSON(jsonBytes)

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation. However, if the original map is modified
externally, behavior is undefined.
*/
package config
