package service

import "fmt"

// Code is a stable numeric error code: codes never change meaning once
// assigned, and a new failure mode gets a new code.
type Code uint32

// Asset service codes.
const (
	CodeAssetJSONParse       Code = 101
	CodeAssetExisted         Code = 102
	CodeAssetNotExist        Code = 103
	CodeAssetInsufficientBal Code = 104
	CodeAssetU64Overflow     Code = 105
	CodeAssetPermissionDenial Code = 106
)

// DEX service codes.
const (
	CodeDexJSONParse      Code = 201
	CodeDexIllegalTrade   Code = 202
	CodeDexTradeExisted   Code = 203
	CodeDexTradeNotExisted Code = 204
	CodeDexOrderOverdue   Code = 205
	CodeDexOrderNotExisted Code = 206
)

// CodeInternal marks a failure that did not originate from a *Error —
// an invariant violation surfacing from a lower layer (e.g. the KV store)
// rather than from a documented service precondition.
const CodeInternal Code = 999

// Error is a service-level failure carrying a stable code and a
// human-readable message, the unit every method in pkg/asset and pkg/dex
// returns on failure. Both "input errors" and "invariant violations"
// use this same type — the code distinguishes which.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// NewError builds an *Error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts a *Error from err if it is one, for callers (e.g. the
// matching hook) that need the numeric code without a type assertion at
// every call site.
func AsError(err error) (*Error, bool) {
	se, ok := err.(*Error)
	return se, ok
}
