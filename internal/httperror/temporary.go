package httperror

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
)

type temporary interface {
	Temporary() bool
}

// Temporary reports whether err is likely to go away if the request is
// repeated later.
func Temporary(err error) bool {
	if err == nil {
		return false
	}
	var t temporary
	if errors.As(err, &t) && t.Temporary() {
		return true
	}
	var nerr net.Error
	switch {
	case errors.As(err, new(*os.SyscallError)):
		return true
	case errors.As(err, &nerr) && nerr.Timeout():
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return false
}
