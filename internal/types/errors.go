package types

import "errors"

// Stable error codes returned on the API boundary.
const (
	CodeInvalidConfiguration = "invalid_configuration"
	CodeWrongTriggerMode     = "wrong_trigger_mode"
	CodeDeviceBusy           = "device_busy"
	CodeUnknownDevice        = "unknown_device"
	CodeUnsupportedOperation = "unsupported_operation"
	CodeAlreadySubscribed    = "already_subscribed"
	CodeDeviceFault          = "device_fault"
	CodeTransportFailure     = "transport_failure"
)

// Domain sentinels. Handlers map these onto ErrorResponse payloads and
// HTTP status codes; everything else becomes a generic internal error.
var (
	ErrInvalidConfiguration = errors.New("invalid trigger configuration")
	ErrWrongTriggerMode     = errors.New("operation not valid for current trigger mode")
	ErrDeviceBusy           = errors.New("device busy acquiring")
	ErrUnknownDevice        = errors.New("unknown device")
	ErrUnsupportedOperation = errors.New("operation not supported by device")
	ErrAlreadySubscribed    = errors.New("connection already subscribed")
	ErrDeviceFault          = errors.New("device in fault state")
	ErrTransportFailure     = errors.New("client transport failed")
)

// Code resolves a domain error to its API code, or "" if the error is
// not one of the domain sentinels.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidConfiguration):
		return CodeInvalidConfiguration
	case errors.Is(err, ErrWrongTriggerMode):
		return CodeWrongTriggerMode
	case errors.Is(err, ErrDeviceBusy):
		return CodeDeviceBusy
	case errors.Is(err, ErrUnknownDevice):
		return CodeUnknownDevice
	case errors.Is(err, ErrUnsupportedOperation):
		return CodeUnsupportedOperation
	case errors.Is(err, ErrAlreadySubscribed):
		return CodeAlreadySubscribed
	case errors.Is(err, ErrDeviceFault):
		return CodeDeviceFault
	case errors.Is(err, ErrTransportFailure):
		return CodeTransportFailure
	default:
		return ""
	}
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
