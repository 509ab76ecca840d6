package retry

import (
	"context"
	"errors"
	"strings"
)

// IsTransient reports whether err looks like a network hiccup or a server
// side failure that a later attempt may not hit again.
func IsTransient(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"no such host",
		"broken pipe",
		"eof",
		"http 500", "http 502", "http 503", "http 504",
		"net::err_",
	} {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
