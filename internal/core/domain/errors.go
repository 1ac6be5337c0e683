package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Problem implements RFC 9457
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`

	Log error `json:"-"`
}

func (p *Problem) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

func (p *Problem) MarshalJSON() ([]byte, error) {
	type Alias Problem

	data := make(map[string]interface{})

	for k, v := range p.Extensions {
		data[k] = v
	}

	stdJSON, _ := json.Marshal(Alias(*p))
	_ = json.Unmarshal(stdJSON, &data)

	return json.Marshal(data)
}

type ProblemOption func(*Problem)

// NewProblem creates a generic Problem
func NewProblem(status int, title, detail string, opts ...ProblemOption) *Problem {
	p := &Problem{
		Type:       "about:blank", // Default as per RFC
		Title:      title,
		Status:     status,
		Detail:     detail,
		Extensions: make(map[string]interface{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// WithExtension adds a custom key-value pair to the response
func WithExtension(key string, value interface{}) ProblemOption {
	return func(p *Problem) {
		p.Extensions[key] = value
	}
}

// WithLog attaches an internal error for server-side logging
func WithLog(err error) ProblemOption {
	return func(p *Problem) {
		p.Log = err
	}
}

// Error defines a standard error shape for the API surface.
type Error struct {
	// HTTP Status Code (e.g., 400, 429, 500)
	Code int
	// Safe message for the client
	Message string
	// Original error for internal logging
	Log error
}

func (e *Error) Error() string {
	return e.Message
}

// ValidationError creates a rich validation error
func ValidationError(validationErrors map[string]string) *Problem {
	return NewProblem(
		http.StatusBadRequest,
		"Validation Error",
		"One or more fields failed validation",
		WithExtension("errors", validationErrors),
	)
}

// BadRequestError creates a standard error for a bad request
func BadRequestError(detail string, opts ...ProblemOption) *Problem {
	return NewProblem(http.StatusBadRequest, "Bad Request", detail, opts...)
}

// InternalError creates a standard error for any internal server error
func InternalError(msg string, err error) *Error {
	return &Error{Code: http.StatusInternalServerError, Message: msg, Log: err}
}

// NotFoundError creates a standard 404 error
func NotFoundError(msg string) *Error {
	return &Error{Code: http.StatusNotFound, Message: msg}
}

// RoutingError is the typed result of a failed routing decision.
// Configuration errors are never retried: a retry cannot fix missing
// configuration.
type RoutingError struct {
	Reason RouteFailureReason
	Detail string
	Err    error
}

func (e *RoutingError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
	}
	return string(e.Reason)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// NoEnabledRoutingConfigError indicates a bot has no enabled routing
// configs at all; the caller must hold a system-wide default.
func NoEnabledRoutingConfigError(botID string) *RoutingError {
	return &RoutingError{
		Reason: ReasonNoEnabledRoutingConfig,
		Detail: fmt.Sprintf("bot %s has no enabled routing config", botID),
	}
}

// NoApplicableRoutingConfigError indicates the bot has enabled routing
// configs but every one of them declined to yield a target, e.g. a
// function route whose rules all miss and that carries no default.
func NoApplicableRoutingConfigError(botID string) *RoutingError {
	return &RoutingError{
		Reason: ReasonNoEnabledRoutingConfig,
		Detail: fmt.Sprintf("bot %s: no enabled routing config yielded a target", botID),
	}
}

// TargetKeyMissingError indicates a routing config references a
// provider key that no longer resolves to a live record.
func TargetKeyMissingError(keyID string, err error) *RoutingError {
	return &RoutingError{
		Reason: ReasonTargetKeyMissing,
		Detail: fmt.Sprintf("provider key %s is missing or deleted", keyID),
		Err:    err,
	}
}

// NoKeyAvailableError indicates the keyring found no usable key for a
// vendor at any pool stage.
func NoKeyAvailableError(vendor string) *RoutingError {
	return &RoutingError{
		Reason: ReasonNoKeyAvailable,
		Detail: fmt.Sprintf("no key available for vendor %s", vendor),
	}
}

// CancelledError indicates the upstream request was cancelled while a
// routing attempt was in flight.
func CancelledError(err error) *RoutingError {
	return &RoutingError{Reason: ReasonCancelled, Detail: "request cancelled", Err: err}
}

// FailureReasonOf extracts the routing failure reason from an error
// chain, defaulting to fatal upstream for untyped errors.
func FailureReasonOf(err error) RouteFailureReason {
	var re *RoutingError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ReasonFatalUpstream
}

// ProblemFor maps a failed routing outcome to its HTTP problem response.
func ProblemFor(outcome RouteOutcome) *Problem {
	status := http.StatusBadGateway
	switch outcome.Reason {
	case ReasonNoEnabledRoutingConfig, ReasonTargetKeyMissing, ReasonNoKeyAvailable:
		status = http.StatusUnprocessableEntity
	case ReasonCancelled:
		status = 499 // client closed request
	}
	return NewProblem(status, "Routing Failed", outcome.Detail,
		WithExtension("reason", outcome.Reason),
		WithExtension("attempted_targets", outcome.Attempted),
	)
}
