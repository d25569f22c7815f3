package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/killteam-scorer/internal/match"
	"github.com/MJE43/killteam-scorer/internal/scripting"
	"github.com/MJE43/killteam-scorer/internal/store"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]interface{}
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error message
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	ctx := eb.context
	if len(ctx) == 0 {
		ctx = nil
	}
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

var (
	errStorage   = errors.New("storage failure")
	errNoStorage = errors.New("match storage is not configured")
)

// storageErr tags a store failure so it is reported as a storage error.
// Not-found errors pass through unchanged.
func storageErr(err error) error {
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", errStorage, err)
}

// classifyError maps an engine, store or formula error to a status and type.
func classifyError(err error) (int, string) {
	var engineErr EngineError
	switch {
	case errors.As(err, &engineErr):
		return http.StatusBadRequest, engineErr.Type

	case errors.Is(err, ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrTypeMatchNotFound
	case errors.Is(err, ErrSessionLimit), errors.Is(err, errNoStorage):
		return http.StatusServiceUnavailable, ErrTypeServiceUnavailable
	case errors.Is(err, errStorage):
		return http.StatusInternalServerError, ErrTypeStorage

	case errors.Is(err, match.ErrImport):
		return http.StatusUnprocessableEntity, ErrTypeImport
	case errors.Is(err, match.ErrSecretCommitted),
		errors.Is(err, match.ErrSecretsRevealed),
		errors.Is(err, match.ErrNotRevealed):
		return http.StatusConflict, ErrTypeSecretLocked
	case errors.Is(err, match.ErrUnknownSide),
		errors.Is(err, match.ErrUnknownField),
		errors.Is(err, match.ErrDerivedField),
		errors.Is(err, match.ErrCardIndex),
		errors.Is(err, match.ErrUnknownCommitment),
		errors.Is(err, match.ErrUnknownOption),
		errors.Is(err, match.ErrInvalidRow):
		return http.StatusBadRequest, ErrTypeValidation

	case errors.Is(err, scripting.ErrFormulaTimeout):
		return http.StatusUnprocessableEntity, ErrTypeTimeout
	case errors.Is(err, scripting.ErrFormulaSyntax),
		errors.Is(err, scripting.ErrFormulaResult),
		errors.Is(err, scripting.ErrFormulaSize):
		return http.StatusUnprocessableEntity, ErrTypeFormula
	}
	return http.StatusInternalServerError, ErrTypeInternal
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger *log.Logger
	audit  *AuditLogger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *log.Logger, audit *AuditLogger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
		audit:  audit,
	}
}

// HandleError classifies err and writes the matching HTTP response.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetReqID(r.Context())
	status, errType := classifyError(err)

	var engineErr EngineError
	if errors.As(err, &engineErr) {
		engineErr.RequestID = requestID
	} else {
		message := err.Error()
		if status == http.StatusInternalServerError {
			message = "Internal server error"
		}
		engineErr = NewError(errType, message).
			WithRequestID(requestID).
			WithContext("path", r.URL.Path).
			WithContext("method", r.Method).
			WithCause(err).
			Build()
	}

	eh.logError(r, engineErr, status)
	eh.writeErrorResponse(w, status, engineErr)
}

// HandleValidationError handles request-shape errors found before the
// engine is called.
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	requestID := middleware.GetReqID(r.Context())

	engineErr := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(requestID).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	eh.audit.LogValidationFailure(requestID, field, message, r.URL.Path, r.RemoteAddr)

	eh.logError(r, engineErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
}

// logError logs the error with appropriate level and context
func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int) {
	category := GetErrorCategory(engineErr.Type)

	logLevel := "ERROR"
	if status < 500 {
		logLevel = "WARN"
	}

	eh.logger.Printf(
		"error_occurred level=%s type=%s category=%s status=%d request_id=%s method=%s path=%s message=%q context=%+v",
		logLevel, engineErr.Type, category, status, engineErr.RequestID, r.Method, r.URL.Path, engineErr.Message, engineErr.Context,
	)
}

// writeErrorResponse writes the error response as JSON
func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(engineErr); err != nil {
		eh.logger.Printf("error_encode_failed request_id=%s err=%v", engineErr.RequestID, err)
	}
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())

				eh.logger.Printf(
					"panic_recovered request_id=%s path=%s method=%s panic=%v",
					requestID, r.URL.Path, r.Method, rvr,
				)

				engineErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					WithContext("method", r.Method).
					Build()

				eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
