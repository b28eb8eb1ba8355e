package errors

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
)

// statusCoder is implemented by transport errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// Classify maps an error returned by a query to an observer error code.
// Decode failures are expected to arrive already wrapped in an ObserverError
// with ErrDecodeFailed. Unknown errors map to ErrQueryFailed.
func Classify(err error) Code {
	if err == nil {
		return ""
	}

	var oe *ObserverError
	if stderrors.As(err, &oe) && oe.Code != "" {
		return oe.Code
	}

	var sc statusCoder
	if stderrors.As(err, &sc) {
		switch status := sc.HTTPStatus(); {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return ErrAuthFailed
		case status == http.StatusNotFound:
			return ErrNotFound
		case status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
			return ErrAPIUnreachable
		case status == http.StatusGatewayTimeout:
			return ErrTimeout
		default:
			return ErrQueryFailed
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrAPIUnreachable
	}

	return ErrQueryFailed
}
