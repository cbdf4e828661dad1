package api

import (
	"encoding/json"
	"net/http"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

// envelope is the JSend-style body every API response uses. Data is always
// present on success, even when null.
type envelope struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		code = http.StatusInternalServerError
		response, _ = json.Marshal(errorEnvelope{Status: statusError, Message: "Internal Server Error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondSuccess(w http.ResponseWriter, code int, data interface{}) {
	respondWithJSON(w, code, envelope{Status: statusSuccess, Data: data})
}

// respondWithError reports 4xx codes as "fail" and everything else as "error".
func respondWithError(w http.ResponseWriter, code int, message string) {
	status := statusError
	if code >= 400 && code < 500 {
		status = statusFail
	}
	respondWithJSON(w, code, errorEnvelope{Status: status, Message: message})
}
