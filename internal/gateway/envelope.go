package gateway

import "net/http"

// Request is the transport-independent request envelope. The transport layer
// builds one per inbound HTTP request; it is read-only after construction.
type Request struct {
	Path    string            `json:"path"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    interface{}       `json:"body,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
}

// Response is the uniform envelope every adapter returns. Exactly one of
// Body/Error carries the payload; a non-nil Error implies a 4xx/5xx status.
type Response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    interface{}       `json:"body"`
	Error   *ErrorInfo        `json:"error"`
}

// ErrorInfo describes a failed operation in the response envelope.
type ErrorInfo struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Error codes surfaced through the envelope.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeAuthError          = "AUTH_ERROR"
	CodeTimeoutError       = "TIMEOUT_ERROR"
	CodeNetworkError       = "NETWORK_ERROR"
	CodeAPIError           = "API_ERROR"
)

// OK builds a success envelope.
func OK(status int, body interface{}) *Response {
	return &Response{Status: status, Body: body}
}

// Fail builds an error envelope.
func Fail(status int, code, message string) *Response {
	return &Response{Status: status, Error: &ErrorInfo{Code: code, Message: message}}
}

// FailWithDetails builds an error envelope carrying operator-facing details.
func FailWithDetails(status int, code, message string, details interface{}) *Response {
	return &Response{Status: status, Error: &ErrorInfo{Code: code, Message: message, Details: details}}
}

// BadRequest builds a 400 envelope with the INVALID_REQUEST code.
func BadRequest(message string) *Response {
	return Fail(http.StatusBadRequest, CodeInvalidRequest, message)
}

// Header returns a request header value, or "" when absent.
func (r *Request) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[name]
}

// QueryParam returns a query value, or "" when absent.
func (r *Request) QueryParam(name string) string {
	if r.Query == nil {
		return ""
	}
	return r.Query[name]
}
