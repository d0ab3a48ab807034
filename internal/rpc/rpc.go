// Package rpc implements the newline-delimited JSON-RPC protocol
// spoken between skillbridge clients and the device bridge. Each
// request and each response is a single JSON object on its own line.
package rpc

import (
	"encoding/json"
	"fmt"
)

// Request is a single bridge call. The id is echoed back verbatim
// whatever its JSON type, so foreign clients may use strings.
type Request struct {
	ID     any            `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// Response is the bridge's answer to a Request. Responses to lines
// that never parsed carry a null id.
type Response struct {
	ID     any             `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error is a structured bridge failure.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard error codes, following JSON-RPC conventions.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewError creates an Error with the given code and message.
func NewError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Ok builds a success Response carrying the marshaled result.
func Ok(id any, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return Fail(id, NewError(CodeInternalError, "marshal result: %v", err))
	}
	return Response{ID: id, Result: data}
}

// Fail builds an error Response.
func Fail(id any, err *Error) Response {
	return Response{ID: id, Error: err}
}
