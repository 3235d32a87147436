package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies a client failure. Every error surfaced by the transport
// and the resource managers carries exactly one Kind.
type Kind string

const (
	KindBadRequest           Kind = "BadRequest"
	KindAuthorizationFailure Kind = "AuthorizationFailure"
	KindForbidden            Kind = "Forbidden"
	KindNotFound             Kind = "NotFound"
	KindMethodNotAllowed     Kind = "MethodNotAllowed"
	KindConflict             Kind = "Conflict"
	KindOverLimit            Kind = "OverLimit"
	KindUnprocessableEntity  Kind = "UnprocessableEntity"
	KindInternalServerError  Kind = "InternalServerError"
	KindServiceUnavailable   Kind = "ServiceUnavailable"
	KindTimeout              Kind = "Timeout"
	KindConnectionError      Kind = "ConnectionError"
	KindResponseFormatError  Kind = "ResponseFormatError"
	KindValidationError      Kind = "ValidationError"
	KindNoUniqueMatch        Kind = "NoUniqueMatch"
	KindAmbiguousEndpoints   Kind = "AmbiguousEndpoints"
	KindEndpointNotFound     Kind = "EndpointNotFound"
	KindGuestLogNotFound     Kind = "GuestLogNotFound"
)

// Error is a typed failure mapped from an HTTP response or raised locally.
type Error struct {
	Kind      Kind
	Status    int
	Message   string
	RequestID string
	// RetryAfter is the server's requested backoff on OverLimit responses,
	// zero when the header was absent or unparseable.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Kind, msg, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// NewError builds a local (non-HTTP) taxonomy error.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err (or anything it wraps) is a taxonomy error of
// the given kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}

// AsError unwraps err into a taxonomy *Error, or nil.
func AsError(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return nil
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindAuthorizationFailure
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusMethodNotAllowed:
		return KindMethodNotAllowed
	case http.StatusConflict:
		return KindConflict
	case http.StatusRequestEntityTooLarge:
		return KindOverLimit
	case http.StatusUnprocessableEntity:
		return KindUnprocessableEntity
	case http.StatusInternalServerError:
		return KindInternalServerError
	case http.StatusServiceUnavailable:
		return KindServiceUnavailable
	default:
		if status >= 500 {
			return KindInternalServerError
		}
		return KindBadRequest
	}
}

// errorBody is the server's error wire shape. Failures arrive either flat
// ({"message": ..., "code": N}) or wrapped under a single kind key
// ({"badRequest": {"message": ..., "code": N}}).
type errorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ErrorFromResponse maps a non-2xx response into the taxonomy. The request id
// is taken from the X-Request-Id (or X-Compute-Request-Id) response header.
func ErrorFromResponse(status int, header http.Header, body []byte) *Error {
	e := &Error{
		Kind:      kindForStatus(status),
		Status:    status,
		RequestID: requestID(header),
	}

	parsed := false
	if len(body) > 0 {
		var flat errorBody
		var wrapped map[string]errorBody
		if err := json.Unmarshal(body, &flat); err == nil && flat.Message != "" {
			e.Message = flat.Message
			parsed = true
		} else if err := json.Unmarshal(body, &wrapped); err == nil {
			for _, eb := range wrapped {
				if eb.Message != "" {
					e.Message = eb.Message
					parsed = true
					break
				}
			}
		}
		if !parsed {
			// Not the documented shape; keep the raw body as the message.
			e.Message = string(body)
		}
	}

	// A 413 is a rate limit only when it arrives with a rate-limit body;
	// an oversized-payload rejection is a plain client error.
	if status == http.StatusRequestEntityTooLarge {
		if parsed {
			e.RetryAfter = retryAfter(header)
		} else {
			e.Kind = KindBadRequest
		}
	}
	return e
}

func requestID(header http.Header) string {
	if id := header.Get("X-Request-Id"); id != "" {
		return id
	}
	return header.Get("X-Compute-Request-Id")
}

// retryAfter parses the Retry-After header, delta-seconds or HTTP-date form.
func retryAfter(header http.Header) time.Duration {
	raw := header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
