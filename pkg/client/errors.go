package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// ErrorKind classifies a failed API call.
type ErrorKind string

const (
	// KindConnection represents transport failures (DNS, TLS, timeout, reset).
	KindConnection ErrorKind = "connection"

	// KindHTTPStatus represents a response with a non-2xx status code.
	KindHTTPStatus ErrorKind = "http_status"

	// KindMalformedResponse represents a body that is not a JSON page.
	KindMalformedResponse ErrorKind = "malformed_response"

	// KindAPI represents a 2xx body carrying a top-level "error" field.
	KindAPI ErrorKind = "api"
)

// ErrorDetails is the structured context attached to every client error.
// It serializes to the same shape a diagnostics panel would render.
type ErrorDetails struct {
	Action        string     `json:"action"`
	Params        url.Values `json:"params,omitempty"`
	Status        int        `json:"status,omitempty"`
	ResponseText  string     `json:"responseText,omitempty"`
	APIError      any        `json:"apiError,omitempty"`
	OriginalError string     `json:"originalError,omitempty"`
}

// Error is implemented by all errors returned from FetchResource and FetchByURL.
type Error interface {
	error
	Kind() ErrorKind
	Details() ErrorDetails
}

// ConnectionError is returned when the request never produced a response.
type ConnectionError struct {
	Action string
	Params url.Values
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("WaniKani connection failure: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error   { return e.Err }
func (e *ConnectionError) Kind() ErrorKind { return KindConnection }

func (e *ConnectionError) Details() ErrorDetails {
	return ErrorDetails{
		Action:        e.Action,
		Params:        e.Params,
		OriginalError: errString(e.Err),
	}
}

// HTTPStatusError is returned for non-2xx responses.
type HTTPStatusError struct {
	Action     string
	Params     url.Values
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("WaniKani connection error: %d", e.StatusCode)
}

func (e *HTTPStatusError) Kind() ErrorKind { return KindHTTPStatus }

func (e *HTTPStatusError) Details() ErrorDetails {
	return ErrorDetails{
		Action: e.Action,
		Params: e.Params,
		Status: e.StatusCode,
	}
}

// MalformedResponseError is returned when a 2xx body cannot be decoded.
type MalformedResponseError struct {
	Action       string
	Params       url.Values
	StatusCode   int
	ResponseText string
	Err          error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Invalid WaniKani response: %v", e.Err)
	}
	return "Invalid WaniKani response"
}

func (e *MalformedResponseError) Unwrap() error   { return e.Err }
func (e *MalformedResponseError) Kind() ErrorKind { return KindMalformedResponse }

func (e *MalformedResponseError) Details() ErrorDetails {
	return ErrorDetails{
		Action:        e.Action,
		Params:        e.Params,
		Status:        e.StatusCode,
		ResponseText:  e.ResponseText,
		OriginalError: errString(e.Err),
	}
}

// APIError is returned when a successfully parsed body reports an error.
// Value is the decoded "error" field, usually a string.
type APIError struct {
	Action     string
	Params     url.Values
	StatusCode int
	Value      any
}

func (e *APIError) Error() string {
	return "WaniKani error: " + e.Message()
}

// Message renders the API's error value as text.
func (e *APIError) Message() string {
	switch v := e.Value.(type) {
	case string:
		return v
	case nil:
		return "null"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func (e *APIError) Kind() ErrorKind { return KindAPI }

func (e *APIError) Details() ErrorDetails {
	return ErrorDetails{
		Action:   e.Action,
		Params:   e.Params,
		Status:   e.StatusCode,
		APIError: e.Value,
	}
}

// KindOf returns the kind of a client error anywhere in err's chain,
// or "" if err did not come from the client.
func KindOf(err error) ErrorKind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return ""
}

// DetailsOf returns the structured context of a client error.
func DetailsOf(err error) (ErrorDetails, bool) {
	var e Error
	if errors.As(err, &e) {
		return e.Details(), true
	}
	return ErrorDetails{}, false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
