/*
Package config loads engine settings from YAML, JSON, or the environment.

# Overview

Config wraps a map[string]any and provides typed accessors that return a
default value for missing keys or values of the wrong type, so settings can
be read without verbose type assertions.

	cfg, err := config.FromFile("winder.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	opts, err := winder.OptionsFromConfig(cfg.Section("winder"))
	engine := winder.New(opts...)

# Environment

FromEnv collects variables sharing a prefix, lowercasing the remainder:

	WINDER_QUEUE_CAPACITY=64   -> queue_capacity: "64"
	WINDER_OVERRUN_POLICY=error -> overrun_policy: "error"

Int, Bool, and Duration accept string values, so environment settings and
file settings read the same way. Merge layers them, later configs winning,
and Load does the common case of a file overlaid by the environment:

	cfg, err := config.Load("winder.yaml", "WINDER")

# Thread Safety

Config is safe for concurrent read access. The underlying map is never
modified after creation.
*/
package config
