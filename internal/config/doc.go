// Package config manages the sigmalink configuration file.
//
// The file is YAML and stores the panels the user has registered (host,
// port, username, metadata) plus polling and retry tuning. It lives in the
// platform config directory:
//   - Linux: $XDG_CONFIG_HOME/sigmalink/config.yaml or $HOME/.config/sigmalink/config.yaml
//   - macOS: $HOME/.config/sigmalink/config.yaml
//   - Windows: %LOCALAPPDATA%\sigmalink\config.yaml
//
// Panel passwords and user PINs are NEVER stored here. They are prompted
// when needed, or read from SIGMALINK_PASSWORD for non-interactive use.
//
// Validation is strict: tuning values outside their allowed ranges (for
// example a poll interval under the floor) are rejected with a config
// error, never silently clamped.
package config
