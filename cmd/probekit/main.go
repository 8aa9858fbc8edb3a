// Package main provides the entry point for the probekit CLI.
//
// probekit classifies scanf/fscanf call sites by whether their string
// conversions are bounded by the destination buffer, confirms the
// classification by executing every call at its boundary input lengths,
// and ships the companion process experiments: argument disguise and
// instruction tracing.
//
// Usage:
//
//	probekit catalogue
//	probekit harness
//	probekit classify '%63s' buf=64
//	probekit trace --offset 0x1139 -- ./program
//
// See --help for all available options.
package main

// main is the entry point for probekit.
func main() {
	Execute()
}
