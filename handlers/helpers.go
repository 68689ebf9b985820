package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// writeJsonAndRespond serializes the given payload to JSON and writes it to the response
// with Content-Type application/json and the given HTTP status code.
//
// if JSON encoding fails (which should not happen with well-defined response structs),
// it falls back to a plain text 500 response.
// all JSON handlers use this function instead of calling json.NewEncoder directly,
// keeping the response format consistent across the entire API.
func writeJsonAndRespond(responseWriter http.ResponseWriter, statusCode int, dataPayload any) {
	responseWriter.Header().Set("Content-Type", "application/json")

	// Marshal buffers the whole body before anything is written, so an encoding error
	// can still become a 500 instead of a truncated 200.
	serializedData, err := json.Marshal(dataPayload)
	if err != nil {
		http.Error(responseWriter, `{"error":"internal encoding error"}`, http.StatusInternalServerError)
		return
	}

	// [1] set headers, [2] WriteHeader(statusCode), [3] Write() the body
	responseWriter.WriteHeader(statusCode)
	responseWriter.Write(serializedData) // nolint:errcheck -- write errors are not actionable on the server side
}

// writeErrorJsonAndLogIt logs the error and writes a standard JSON error response:
//
//	{"error": "some human-readable message"}
//
// the message sent to the client is always a controlled string,
// never a raw Go error, to avoid leaking internal implementation details.
// 5xx responses are logged at ERROR, client errors at WARN.
func writeErrorJsonAndLogIt(
	responseWriter http.ResponseWriter,
	statusCode int,
	message string,
	logger *slog.Logger,
) {
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", "status", statusCode, "message", message)
	} else {
		logger.Warn("request rejected", "status", statusCode, "message", message)
	}
	writeJsonAndRespond(responseWriter, statusCode, map[string]string{"error": message})
}

// decodeJsonBody decodes the request body into target.
// reports whether the failure was the body limit, so callers can answer 413 instead of 400.
func decodeJsonBody(request *http.Request, target any) (tooLarge bool, err error) {
	err = json.NewDecoder(request.Body).Decode(target)
	if err == nil {
		return false, nil
	}
	var maxBytesError *http.MaxBytesError
	return errors.As(err, &maxBytesError), err
}
