package utils

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindResourceUnavailable ErrorKind = iota + 1
	KindRangeNotHonored
	KindNetwork
	KindFilesystem
	KindConcurrency
	KindConfig
)

var (
	ErrResourceUnavailable = errors.New("resource unavailable")
	ErrRangeNotHonored     = errors.New("range request not honored")
	ErrNetwork             = errors.New("network error")
	ErrFilesystem          = errors.New("filesystem error")
	ErrConcurrency         = errors.New("concurrency limiter error")
	ErrInvalidConfig       = errors.New("invalid configuration")
)

var kindSentinels = map[ErrorKind]error{
	KindResourceUnavailable: ErrResourceUnavailable,
	KindRangeNotHonored:     ErrRangeNotHonored,
	KindNetwork:             ErrNetwork,
	KindFilesystem:          ErrFilesystem,
	KindConcurrency:         ErrConcurrency,
	KindConfig:              ErrInvalidConfig,
}

func (k ErrorKind) String() string {
	if err, ok := kindSentinels[k]; ok {
		return err.Error()
	}
	return "unknown error"
}

// TransferError is the single error type surfaced by a transfer. errors.Is
// matches it against the sentinel of its kind.
type TransferError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Err        error
}

func (e *TransferError) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func (e *TransferError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func NewError(kind ErrorKind, op string, err error) *TransferError {
	return &TransferError{Kind: kind, Op: op, Err: err}
}

func StatusError(op string, status int) *TransferError {
	return &TransferError{Kind: KindResourceUnavailable, Op: op, StatusCode: status}
}
