package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"diet-coach/internal/extraction"
	"diet-coach/internal/storage"
)

// Envelope is the JSON body of every API response.
type Envelope struct {
	Data    any     `json:"data"`
	Message string  `json:"message"`
	Error   *string `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeEnvelope(w http.ResponseWriter, status int, data any, message, errMsg string) {
	env := Envelope{Data: data, Message: message}
	if errMsg != "" {
		env.Error = &errMsg
	}
	writeJSON(w, status, env)
}

// writeExtractionError maps pipeline and upload failures onto client-facing
// responses. Bad input is kept apart from infrastructure trouble.
func writeExtractionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, extraction.ErrNoImagesProvided):
		writeEnvelope(w, http.StatusBadRequest, nil, "No files uploaded.", "Please upload the images to extract the data from.")
	case errors.Is(err, extraction.ErrUnsupportedMediaType):
		writeEnvelope(w, http.StatusUnsupportedMediaType, nil, "Unsupported file type.", err.Error())
	case errors.Is(err, storage.ErrTooLarge):
		writeEnvelope(w, http.StatusRequestEntityTooLarge, nil, "File too large.", err.Error())
	case errors.Is(err, extraction.ErrNoDietFound):
		writeEnvelope(w, http.StatusUnprocessableEntity, nil, "No diet plan found in the uploaded images.", "diet not found")
	case errors.Is(err, extraction.ErrSchemaViolation):
		writeEnvelope(w, http.StatusUnprocessableEntity, nil, "Could not read a weekly diet plan from the uploaded images.", "Please upload clearer images of the diet plan.")
	case errors.Is(err, extraction.ErrUpstreamUnavailable):
		writeEnvelope(w, http.StatusBadGateway, nil, "Diet extraction service unavailable.", "Please try again later.")
	case errors.Is(err, context.DeadlineExceeded):
		writeEnvelope(w, http.StatusGatewayTimeout, nil, "Diet extraction timed out.", "Please try again later.")
	default:
		writeEnvelope(w, http.StatusInternalServerError, nil, "Server error", "Server error")
	}
}
