//go:build !linux

package cli

// Only Linux exposes more than one adapter to either backend.
func (c *Config) registerCommandLineFlagsOsSpecific() {}
