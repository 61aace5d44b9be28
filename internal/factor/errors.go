package factor

import (
	"errors"
	"fmt"
)

// Kind classifies analysis failures. The set is closed; callers switch on KindOf.
type Kind int

// Failure kinds
const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidRequest
	KindInsufficientData
	KindNoValidStocks
	KindZeroPortfolioValue
)

// Sentinels for errors.Is matching by kind
var (
	ErrInternal           = errors.New("internal error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrNoValidStocks      = errors.New("no valid stocks")
	ErrZeroPortfolioValue = errors.New("zero portfolio value")
)

// String returns the wire name of the kind
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindInsufficientData:
		return "InsufficientData"
	case KindNoValidStocks:
		return "NoValidStocks"
	case KindZeroPortfolioValue:
		return "ZeroPortfolioValue"
	default:
		return "InternalError"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindInsufficientData:
		return ErrInsufficientData
	case KindNoValidStocks:
		return ErrNoValidStocks
	case KindZeroPortfolioValue:
		return ErrZeroPortfolioValue
	default:
		return ErrInternal
	}
}

// Error is the single error type returned by the engine.
// Stage names the pipeline step that failed.
type Error struct {
	Kind   Kind
	Stage  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

func newError(kind Kind, stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Detail: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, stage string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Detail: fmt.Sprintf(format, args...), Err: err}
}

func insufficientData(stage string, got, need int) *Error {
	return newError(KindInsufficientData, stage, "%d aligned data points, need at least %d", got, need)
}
