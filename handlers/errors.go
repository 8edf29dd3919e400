package handlers

import "net/http"

// Client facing failure bodies. They never carry upstream detail.
const (
	msgCatalogUnavailable   = "catalog unavailable"
	msgSignatureUnavailable = "signature unavailable"
	msgStreamError          = "stream error"
	msgUnknownChannel       = "unknown channel: "
)

func writeError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(message + "\n"))
}
