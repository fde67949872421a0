package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/ruuvi-bridge/internal/device"
	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes, one per status the API returns.
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeConflict   = "conflict"
	ErrCodeValidation = "validation_error"
	ErrCodeInternal   = "internal_error"
)

var statusCodes = map[int]string{
	http.StatusBadRequest:          ErrCodeBadRequest,
	http.StatusNotFound:            ErrCodeNotFound,
	http.StatusConflict:            ErrCodeConflict,
	http.StatusUnprocessableEntity: ErrCodeValidation,
}

// domainStatus maps package sentinels onto HTTP statuses. The first match wins.
var domainStatus = []struct {
	err    error
	status int
}{
	{device.ErrDeviceNotFound, http.StatusNotFound},
	{device.ErrDuplicateMapping, http.StatusConflict},
	{device.ErrInvalidMapping, http.StatusUnprocessableEntity},
	{ruuvi.ErrInvalidAddress, http.StatusUnprocessableEntity},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // the client may already be gone
	json.NewEncoder(w).Encode(v)
}

// writeError writes an Error body. Statuses without a dedicated code
// report internal_error.
func writeError(w http.ResponseWriter, status int, message string) {
	code, ok := statusCodes[status]
	if !ok {
		code = ErrCodeInternal
	}
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

// writeDomainError reports err with the status of the first sentinel it
// wraps. Unrecognised errors become a 500 carrying fallback instead of
// err's text.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	for _, m := range domainStatus {
		if errors.Is(err, m.err) {
			writeError(w, m.status, err.Error())
			return
		}
	}
	writeError(w, http.StatusInternalServerError, fallback)
}
