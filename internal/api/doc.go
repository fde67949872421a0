// Package api implements the bridge's HTTP diagnostics API and WebSocket feed.
//
// This package provides:
//   - Read-only endpoints for device snapshots, unknown devices and counters
//   - Name mapping listing, and storing new mappings for the next start
//   - WebSocket hub broadcasting reading.updated events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support
//
// # Routes
//
//	GET  /api/v1/health
//	GET  /api/v1/stats
//	GET  /api/v1/devices[?named=true|false]
//	GET  /api/v1/devices/unknown
//	GET  /api/v1/devices/{address}
//	GET  /api/v1/mappings
//	POST /api/v1/mappings
//	GET  /api/v1/ws
//
// The server follows the same lifecycle pattern as the infrastructure clients:
//
//	server, err := api.New(deps)
//	if err := server.Start(ctx); err != nil {
//	    return err
//	}
//	defer server.Close()
//
// There is no authentication. Bind the API to a trusted network.
package api
