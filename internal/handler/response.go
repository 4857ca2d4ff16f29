package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/scheduler"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/service"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode JSON response")
	}
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteJSON(w, r, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// WriteCreated writes a 201 Created response with the given data
func WriteCreated(w http.ResponseWriter, r *http.Request, data interface{}) {
	WriteJSON(w, r, http.StatusCreated, data)
}

// WriteOK writes a 200 OK response with the given data
func WriteOK(w http.ResponseWriter, r *http.Request, data interface{}) {
	WriteJSON(w, r, http.StatusOK, data)
}

// WriteValidationError writes a 400 Bad Request response with VALIDATION_ERROR code
func WriteValidationError(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// WriteInternalError writes a 500 response without exposing internal details
func WriteInternalError(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
}

// HandleServiceError maps service layer errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   *service.NotFoundError
		validation *service.ValidationError
		conflict   *service.SchedulingConflictError
		empty      *service.EmptyAudienceError
		fatal      *service.DispatchFatalError
	)

	switch {
	case errors.As(err, &notFound):
		WriteError(w, r, http.StatusNotFound, "RESOURCE_NOT_FOUND", notFound.Error())
	case errors.As(err, &validation):
		WriteValidationError(w, r, validation.Message)
	case errors.As(err, &conflict):
		WriteError(w, r, http.StatusConflict, "SCHEDULING_CONFLICT", conflict.Error())
	case errors.As(err, &empty):
		WriteError(w, r, http.StatusUnprocessableEntity, "EMPTY_AUDIENCE", empty.Error())
	case errors.As(err, &fatal):
		zerolog.Ctx(r.Context()).Error().Err(err).Bool("reverted", fatal.Reverted).Msg("dispatch failed")
		msg := fmt.Sprintf("dispatch of campaign %d failed during %s", fatal.CampaignID, fatal.Stage)
		if fatal.Reverted {
			msg += "; campaign was rescheduled for retry"
		}
		WriteError(w, r, http.StatusInternalServerError, "DISPATCH_FAILED", msg)
	case errors.Is(err, service.ErrAsyncDisabled):
		WriteError(w, r, http.StatusServiceUnavailable, "ASYNC_DISABLED", err.Error())
	case errors.Is(err, scheduler.ErrTickInProgress):
		WriteError(w, r, http.StatusConflict, "TICK_IN_PROGRESS", err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unhandled service error")
		WriteInternalError(w, r)
	}
}

// decodeJSON decodes the request body into v and writes the error response on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			WriteError(w, r, http.StatusBadRequest, "INVALID_JSON", "Request body is empty")
			return false
		}
		WriteError(w, r, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return false
	}
	return true
}

// pathID parses the positive integer {id} route variable
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		WriteValidationError(w, r, "invalid campaign ID format")
		return 0, false
	}
	if id <= 0 {
		WriteValidationError(w, r, "campaign ID must be greater than 0")
		return 0, false
	}
	return id, true
}
