// Package config provides configuration structures and utilities for probekit.
// It defines the options for classifying catalogues, running the boundary
// harness, tracing programs and generating reports, along with the optional
// .probekit YAML file holding per-probe overrides and trace defaults.
package config
