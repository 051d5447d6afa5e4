package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"lol-tracker/internal/errs"
)

// Envelope wraps every API response.
type Envelope struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func respondWithData(w http.ResponseWriter, payload interface{}) {
	respondWithJSON(w, http.StatusOK, Envelope{OK: true, Data: payload})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, Envelope{OK: false, Error: message})
}

// respondWithErr maps err onto a status. Server-side failures get a fixed
// message so internals stay out of responses.
func respondWithErr(w http.ResponseWriter, err error) {
	code := errs.HTTPStatus(err)
	message := err.Error()
	switch {
	case errors.Is(err, errs.ErrUpstreamUnavailable):
		message = "riot api unavailable"
	case errors.Is(err, errs.ErrStoreUnavailable):
		message = "record store unavailable"
	case code >= http.StatusInternalServerError:
		message = "internal error"
	}
	respondWithError(w, code, message)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
