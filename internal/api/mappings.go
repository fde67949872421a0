package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/ruuvi-bridge/internal/device"
	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

// createMappingRequest is the body of POST /mappings.
type createMappingRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// handleListMappings returns the name table, sorted by name.
func (s *Server) handleListMappings(w http.ResponseWriter, _ *http.Request) {
	mappings := s.registry.Names().Mappings()
	writeJSON(w, http.StatusOK, map[string]any{"mappings": mappings, "count": len(mappings)})
}

// handleCreateMapping stores a mapping for the next start. The running name
// table is never changed, so a device keeps its label for the life of the
// process. Conflicts with the running table are reported here rather than
// skipped at the next startup load.
func (s *Server) handleCreateMapping(w http.ResponseWriter, r *http.Request) {
	if s.mappings == nil {
		writeError(w, http.StatusBadRequest, "mapping persistence is not configured")
		return
	}

	var req createMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	addr, err := ruuvi.ParseAddress(req.Address)
	if err != nil {
		writeDomainError(w, err, "invalid device address")
		return
	}

	label, err := s.registry.Names().Check(addr, req.Name)
	if err != nil {
		writeDomainError(w, err, "invalid mapping")
		return
	}

	m := device.Mapping{Address: addr, Name: label, CreatedAt: time.Now().UTC()}
	if err := s.mappings.Create(r.Context(), &m); err != nil {
		if errors.Is(err, device.ErrDuplicateMapping) {
			writeDomainError(w, err, "mapping already stored")
			return
		}
		s.logger.Error("failed to store mapping", "address", addr, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store mapping")
		return
	}

	s.logger.Info("name mapping stored, applies on next start", "address", addr, "name", label)
	writeJSON(w, http.StatusCreated, m)
}
