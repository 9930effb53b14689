package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindTransient
	KindRateLimit
	KindValidation
	KindWrite
	KindOverrun
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindTransient:
		return "transient"
	case KindRateLimit:
		return "rate_limit"
	case KindValidation:
		return "validation"
	case KindWrite:
		return "write"
	case KindOverrun:
		return "schedule_overrun"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error carries the classification of a failed operation.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		b.WriteString(" (status ")
		b.WriteString(strconv.Itoa(e.StatusCode))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func retryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// FromStatus maps an HTTP status code to an error kind.
func FromStatus(op string, status int, header http.Header, body string) *Error {
	e := &Error{Op: op, StatusCode: status}
	if body != "" {
		e.Err = errors.New(body)
	}

	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuth
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
		e.RetryAfter = ParseRetryAfter(header.Get("Retry-After"), time.Now())
	case status == http.StatusRequestTimeout, status >= 500:
		e.Kind = KindTransient
	default:
		e.Kind = KindPermanent
	}

	return e
}

// FromTransport classifies an error returned by an HTTP round trip. The
// parent context's cancellation is returned untouched so callers stop.
func FromTransport(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransient, Op: op, Err: err}
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	// Connection resets and unexpected EOFs surface as plain errors.
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// ParseRetryAfter accepts delta-seconds or an HTTP-date.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
