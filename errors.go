package weightd

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable code carried in an error response.
type ErrorCode string

const (
	CodeNotFound    ErrorCode = "not_found"
	CodeBadRequest  ErrorCode = "bad_request"
	CodeInternal    ErrorCode = "internal"
	CodeUnsupported ErrorCode = "unsupported"
)

var _ error = (*DaemonError)(nil)

// DaemonError is an error reported over the wire as {"error":Msg,"code":Code}.
type DaemonError struct {
	Code ErrorCode
	Msg  string
}

func (e *DaemonError) Error() string {
	return fmt.Sprintf("daemon error [%s]: %s", e.Code, e.Msg)
}

// IsDaemonError reports whether err wraps a DaemonError with the given code.
func IsDaemonError(err error, code ErrorCode) bool {
	var de *DaemonError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

func badRequest(format string, args ...interface{}) *DaemonError {
	return &DaemonError{Code: CodeBadRequest, Msg: fmt.Sprintf(format, args...)}
}

func unsupported(format string, args ...interface{}) *DaemonError {
	return &DaemonError{Code: CodeUnsupported, Msg: fmt.Sprintf(format, args...)}
}
