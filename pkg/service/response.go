package service

import "encoding/json"

// Response is the uniform envelope every write/read call returns:
// code 0 means success, succeed_data carries the payload.
type Response struct {
	Code         Code            `json:"code"`
	ErrorMessage string          `json:"error_message"`
	SucceedData  json.RawMessage `json:"succeed_data,omitempty"`
}

// Ok wraps a successful result.
func Ok(v any) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return Response{Code: CodeInternal, ErrorMessage: err.Error()}
	}
	return Response{Code: 0, SucceedData: data}
}

// Wrap builds a Response from a (value, error) pair the way an HTTP
// handler in pkg/api turns a service call's return into a wire reply:
// a nil error means success; a *service.Error carries its own code; any
// other error is reported as an opaque invariant failure.
func Wrap(v any, err error) Response {
	if err == nil {
		return Ok(v)
	}
	if se, ok := AsError(err); ok {
		return Response{Code: se.Code, ErrorMessage: se.Message}
	}
	return Response{Code: CodeInternal, ErrorMessage: err.Error()}
}
