package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

// handleListDevices returns a snapshot of every device, sorted by address.
//
// Query parameters:
//   - named: "true" for mapped devices only, "false" for unmapped only
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	snaps := s.registry.Snapshots()

	switch r.URL.Query().Get("named") {
	case "":
	case "true", "false":
		want := r.URL.Query().Get("named") == "true"
		filtered := snaps[:0]
		for _, snap := range snaps {
			if snap.Named == want {
				filtered = append(filtered, snap)
			}
		}
		snaps = filtered
	default:
		writeError(w, http.StatusBadRequest, "named must be true or false")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": snaps, "count": len(snaps)})
}

// handleGetDevice returns one device by hardware address.
// The address may be written with or without ':' separators.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	addr, err := ruuvi.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.registry.Snapshot(addr)
	if err != nil {
		writeDomainError(w, err, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleListUnknownDevices returns the addresses heard without a name
// mapping, in first-seen order.
func (s *Server) handleListUnknownDevices(w http.ResponseWriter, _ *http.Request) {
	addresses := s.registry.UnknownDevices()
	writeJSON(w, http.StatusOK, map[string]any{"addresses": addresses, "count": len(addresses)})
}
