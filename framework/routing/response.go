package routing

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/logger"
)

type envelope map[string]any

// JSON sends a JSON response.
//
//	routing.JSON(w, http.StatusOK, map[string]any{"message": "ok"})
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response: {"message": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, envelope{"message": message})
}

func errNilHandler(id string) error {
	return &container.Error{
		Code:       container.CodeContainer,
		Identifier: id,
		Message:    fmt.Sprintf("[%s] resolved to nil", id),
	}
}

// resolutionFailed answers 500. The container error code is always
// included; the message only in debug mode.
func (r *Router) resolutionFailed(w http.ResponseWriter, req *http.Request, id string, err error) {
	r.log.Error("handler resolution failed", logger.Fields(
		logger.FieldIdentifier, id,
		logger.FieldError, err,
		"request_id", middleware.GetReqID(req.Context()),
	))

	body := envelope{"message": "Server Error.", "code": string(container.CodeOf(err))}
	if r.debug {
		body["error"] = err.Error()
	}
	JSON(w, http.StatusInternalServerError, body)
}
