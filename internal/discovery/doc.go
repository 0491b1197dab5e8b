// Package discovery finds Sigma alarm panels on the local network.
//
// The panels do not advertise a service of their own, so discovery works in
// two steps: browse mDNS for hosts that announce anything at all, then
// probe each candidate address on the panel's fixed port and keep the ones
// that answer with the panel login page. Probe is also usable on its own to
// confirm a manually entered host.
package discovery
