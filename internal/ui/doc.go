// Package ui renders the terminal interface for sigmalink.
//
// The centerpiece is the watch dashboard: a live Bubble Tea view of one
// panel showing the alarm state, zones, battery and mains power, and
// availability, with keybindings for arming and disarming. Simpler
// commands print styled one-shot output through the same palette.
package ui
