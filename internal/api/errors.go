package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind is the closed set of failure shapes callers may observe.
type ErrorKind int

const (
	// KindNoResponse means the request never produced an HTTP response
	// (connection refused, DNS failure, timeout).
	KindNoResponse ErrorKind = iota
	// KindServer is a non-2xx response carrying a single message.
	KindServer
	// KindValidation is a non-2xx response carrying a field-keyed error map.
	KindValidation
	// KindUnauthenticated is a 401. On the who-am-I endpoint this is the
	// normal "not signed in" outcome, not a fault.
	KindUnauthenticated
)

// Error is the only error type produced by the client. Call sites inspect
// Kind rather than probing response bodies ad hoc.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNoResponse:
		return "no response from server: " + e.Message
	case KindValidation:
		parts := make([]string, 0, len(e.Fields))
		for field, msg := range e.Fields {
			parts = append(parts, field+": "+msg)
		}
		return "validation failed: " + strings.Join(parts, "; ")
	case KindUnauthenticated:
		return "not authenticated"
	default:
		return fmt.Sprintf("server error (status %d): %s", e.Status, e.Message)
	}
}

// AsError unwraps err into the client error type.
func AsError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func IsUnauthenticated(err error) bool {
	ae, ok := AsError(err)
	return ok && ae.Kind == KindUnauthenticated
}

func noResponse(err error) *Error {
	return &Error{Kind: KindNoResponse, Message: err.Error()}
}

// normalizeResponse turns a non-2xx response body into the typed error.
// Bodies carrying an "errors" object become KindValidation; a "message" or
// "error" string becomes KindServer; anything else falls back to the HTTP
// status text.
func normalizeResponse(status int, body []byte) *Error {
	var envelope struct {
		Errors  map[string]json.RawMessage `json:"errors"`
		Message string                     `json:"message"`
		Error   string                     `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)

	if status == http.StatusUnauthorized {
		msg := envelope.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &Error{Kind: KindUnauthenticated, Status: status, Message: msg}
	}
	if len(envelope.Errors) > 0 {
		fields := make(map[string]string, len(envelope.Errors))
		for field, raw := range envelope.Errors {
			fields[field] = decodeFieldMessage(raw)
		}
		return &Error{Kind: KindValidation, Status: status, Message: "validation failed", Fields: fields}
	}
	if envelope.Message != "" {
		return &Error{Kind: KindServer, Status: status, Message: envelope.Message}
	}
	if envelope.Error != "" {
		return &Error{Kind: KindServer, Status: status, Message: envelope.Error}
	}
	return &Error{Kind: KindServer, Status: status, Message: http.StatusText(status)}
}

// Field messages arrive either as a plain string or as an array of strings.
func decodeFieldMessage(raw json.RawMessage) string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return strings.Join(many, " ")
	}
	return string(raw)
}
