// Package response owns the JSON envelope. Success bodies always carry
// status "success"; failures carry "failed" for client faults and "error"
// for server faults, and unknown errors never leak detail outside
// development.
package response

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/pkg/logger"
)

type envelope map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// Success writes {"status":"success","data":{...}}. data maps each result
// to its envelope key, e.g. {"tour": tour}.
func Success(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{"status": "success", "data": data})
}

// SuccessList adds the result count collections carry.
func SuccessList(w http.ResponseWriter, status int, results int, data interface{}) {
	writeJSON(w, status, envelope{"status": "success", "results": results, "data": data})
}

// SuccessWithToken is the auth variant: the fresh JWT rides at the top
// level next to the data.
func SuccessWithToken(w http.ResponseWriter, status int, token string, data interface{}) {
	body := envelope{"status": "success", "token": token}
	if data != nil {
		body["data"] = data
	}
	writeJSON(w, status, body)
}

// NoContent is the delete response; 204 carries no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an operational error as-is. Unknown errors are logged with
// their full chain and surfaced as a generic 500; in dev mode the raw
// error and a stack trace are attached to help debugging.
func Error(w http.ResponseWriter, r *http.Request, err error, dev bool) {
	appErr, ok := apperror.AsError(err)
	if !ok {
		logger.ErrorContext(r.Context(), "Unhandled error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		appErr = apperror.Wrap(http.StatusInternalServerError, "Something went wrong", err)
	}

	body := envelope{
		"status":  statusWord(appErr.Code),
		"message": appErr.Message,
	}
	if dev {
		body["error"] = appErr.Error()
		body["stack"] = string(debug.Stack())
	}
	writeJSON(w, appErr.Code, body)
}

func statusWord(code int) string {
	if code >= http.StatusInternalServerError {
		return "error"
	}
	return "failed"
}
