package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"social-service/internal/apperror"
	"social-service/internal/util"
)

// Meta is the status block every response carries.
type Meta struct {
	Status  int  `json:"status"`
	Success bool `json:"success"`
}

type SuccessBody struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type ErrorBody struct {
	Message string           `json:"message"`
	Context apperror.Context `json:"context,omitempty"`
}

// Response is the envelope of every REST reply. Exactly one of Data and
// Error is set.
type Response struct {
	Meta  Meta         `json:"meta"`
	Data  *SuccessBody `json:"data,omitempty"`
	Error *ErrorBody   `json:"error,omitempty"`
}

// responder writes envelopes. debug exposes internal error details.
type responder struct {
	logger *zap.Logger
	debug  bool
}

func newResponder(logger *zap.Logger, debug bool) responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return responder{logger: logger, debug: debug}
}

func (rs responder) respondWithJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rs.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

func (rs responder) success(w http.ResponseWriter, statusCode int, message string, data any) {
	rs.respondWithJSON(w, statusCode, Response{
		Meta: Meta{Status: statusCode, Success: true},
		Data: &SuccessBody{Message: message, Data: data},
	})
}

func (rs responder) ok(w http.ResponseWriter, message string, data any) {
	rs.success(w, http.StatusOK, message, data)
}

func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusCode(err)
	body := &ErrorBody{Message: "Internal Server Error"}

	if appErr, ok := apperror.As(err); ok {
		body.Message = appErr.Message
		body.Context = appErr.Context
		rs.logger.Debug("HTTP error response",
			util.String("path", r.URL.Path),
			util.Int("status_code", status),
			util.String("message", appErr.Message))
	} else {
		rs.logger.Error("Unhandled error",
			util.String("method", r.Method),
			util.String("path", r.URL.Path),
			util.ErrorField(err))
		if rs.debug {
			body.Context = apperror.Context{"message": err.Error(), "stack": string(debug.Stack())}
		}
	}

	rs.respondWithJSON(w, status, Response{
		Meta:  Meta{Status: status, Success: false},
		Error: body,
	})
}

// statusCode maps an error kind to its HTTP status.
func statusCode(err error) int {
	switch {
	case errors.Is(err, apperror.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrTooManyRequests):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

const maxJSONBody = 1 << 20

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	if err := readJSON(r, dst); err != nil {
		return err
	}
	return Validate(dst)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.BadRequest("Request body is required")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return apperror.BadRequest("Validation Error", apperror.Context{
				"validationErrors": []FieldError{{Field: typeErr.Field, Message: "Invalid type, expected " + typeErr.Type.String()}},
			})
		}
		return apperror.BadRequest("Invalid JSON in request body")
	}
	return nil
}
