// Package urls centralizes the documentation URLs printed by the CLI so
// they can be updated in one place before a release.
package urls

// All URLs point to the documentation site at https://mkefalas.github.io/sigmalink/

// GettingStarted is the quick start guide: finding the panel on the
// network, registering it, and running the first status read.
const GettingStarted = "https://mkefalas.github.io/sigmalink/getting-started/"

// Troubleshooting covers the common failure modes: unreachable panels,
// rejected logins, and the single-session limitation.
const Troubleshooting = "https://mkefalas.github.io/sigmalink/troubleshooting/"

// BridgeAPI documents the JSON and WebSocket API served by `sigmalink serve`.
const BridgeAPI = "https://mkefalas.github.io/sigmalink/bridge-api/"

// SupportedPanels lists the Sigma firmware versions the HTML parsing has
// been verified against, and how to report an unrecognized one.
const SupportedPanels = "https://mkefalas.github.io/sigmalink/supported-panels/"
