package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a transport failure
type Kind int

const (
	// KindNetwork means no response was received
	KindNetwork Kind = iota + 1
	// KindServer is a server-class (>= 500) status
	KindServer
	// KindSessionExpired is the expired-session status surviving one refresh replay
	KindSessionExpired
	// KindUnauthenticated means the session could not be refreshed
	KindUnauthenticated
	// KindClient is any other client-class status (invalid credentials, validation)
	KindClient
	// KindDecode means the response body could not be decoded
	KindDecode
)

var (
	ErrNetwork         = errors.New("network failure")
	ErrServer          = errors.New("server error")
	ErrSessionExpired  = errors.New("session expired")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrClient          = errors.New("request rejected")
	ErrDecode          = errors.New("invalid response body")
)

var kindSentinels = map[Kind]error{
	KindNetwork:         ErrNetwork,
	KindServer:          ErrServer,
	KindSessionExpired:  ErrSessionExpired,
	KindUnauthenticated: ErrUnauthenticated,
	KindClient:          ErrClient,
	KindDecode:          ErrDecode,
}

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindSessionExpired:
		return "session_expired"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindClient:
		return "client"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is the classified failure returned by every Client operation.
// errors.Is matches both the Kind sentinel and the wrapped cause.
type Error struct {
	Kind      Kind
	Method    string
	Path      string
	Status    int
	Message   string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s (status %d): %s", e.Method, e.Path, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.Kind, msg)
}

func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the backend-supplied message, if any
func UserMessage(err error) string {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Message
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Status
	}
	return 0
}

func classifyStatus(status, expiredStatus int) Kind {
	switch {
	case status == expiredStatus:
		return KindSessionExpired
	case status >= http.StatusInternalServerError:
		return KindServer
	default:
		return KindClient
	}
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from a body
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

func retryable(err error) bool {
	var terr *Error
	if !errors.As(err, &terr) {
		return false
	}
	return terr.Kind == KindNetwork || terr.Kind == KindServer
}
