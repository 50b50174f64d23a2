// Package config manages the user configuration file: per-device metadata
// (nicknames, last-seen info) and application preferences such as the
// default gateway and the capability cache backend.
//
// The file lives under the platform configuration directory reported by
// os.UserConfigDir (e.g. ~/.config/ledble/config.yaml on Linux).
//
// Saves are atomic (write to a temp file, then rename).
package config
