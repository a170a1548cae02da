package api

import (
	"encoding/json"
	"net/http"
)

// StatusResponse is the body returned by the ingestion endpoint.
type StatusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
	Filter string `json:"filter,omitempty"`
}

const (
	statusSuccess          = "success"
	statusPong             = "pong"
	statusIgnored          = "ignored"
	statusUnsupportedKind  = "unsupported_kind"
	statusMalformedPayload = "malformed_payload"
	statusInvalidSignature = "invalid_signature"
	statusPayloadTooLarge  = "payload_too_large"
	statusStoreUnavailable = "store_unavailable"
	statusInvalidQuery     = "invalid_query"
	statusMethodNotAllowed = "method_not_allowed"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeStatus(w http.ResponseWriter, status int, resp StatusResponse) {
	writeJSON(w, status, resp)
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeStatus(w, http.StatusMethodNotAllowed, StatusResponse{Status: statusMethodNotAllowed})
}
