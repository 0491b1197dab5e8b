// Package bridge exposes a panel to other software over HTTP.
//
// The panel itself only speaks browser HTML; the bridge puts a small JSON
// API in front of a running polling coordinator and action executor:
//
//	GET  /api/status    current snapshot and availability
//	POST /api/arm_away  run the verified action, report the Result
//	POST /api/arm_stay
//	POST /api/disarm
//	GET  /api/stream    WebSocket pushing every poll update as JSON
//
// One bridge serves one panel. Commands go through the executor, so they
// carry the full retry-and-verify semantics and overlapping requests are
// rejected, not queued.
package bridge
