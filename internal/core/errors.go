package core

import (
	"errors"

	"github.com/vovakirdan/betairc/internal/proto"
)

var (
	ErrInvalidUsername   = errors.New("invalid username")
	ErrDuplicateUsername = errors.New("username already in use")
	ErrUserNotFound      = errors.New("user not found")
	ErrChannelNotFound   = errors.New("channel not found")
	ErrNotAMember        = errors.New("not a member")
	ErrNoChannel         = errors.New("not in any channel")
	ErrMissingArgument   = errors.New("missing argument")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrBanned            = errors.New("username is banned")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrTransportFailure  = errors.New("transport failure")
	ErrClientClosed      = errors.New("client closed")
)

// CoreError pairs a protocol status code with the text shown to the client.
type CoreError struct {
	Code    string
	Message string
	err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.err
}

func coreError(code string, err error, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg, err: err}
}

// StatusCode maps an error from the taxonomy to the response code sent to the client.
func StatusCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrChannelNotFound):
		return proto.CodeNotFound
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrBanned):
		return proto.CodeForbidden
	default:
		return proto.CodeError
	}
}

// responseFor renders err as a response frame.
func responseFor(err error) []byte {
	return proto.EncodeResponse(StatusCode(err), err.Error())
}
