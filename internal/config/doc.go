// Package config loads and validates ecmc run configurations.
//
// A configuration is a YAML or TOML file chosen by extension. Values are
// decoded over Defaults(); fields that depend on other fields (system
// lengths, the start velocity, the particle lattice) are derived after
// decoding when the file leaves them out.
//
// Validation runs in two passes: the decoded value is unified with the
// embedded CUE schema (types, enums, ranges), then Go-side checks cover the
// rules that relate fields to each other. All violations are reported
// together.
package config
