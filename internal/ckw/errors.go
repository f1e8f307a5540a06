package ckw

import (
	"errors"
	"fmt"
)

// Programmer contract violations. Any of these means the caller built the
// kernel wrong; none of them is recoverable for the kernel being built.
var (
	ErrShapeMismatch      = errors.New("shape mismatch")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrDuplicateTile      = errors.New("duplicate tile name")
	ErrDuplicateTensor    = errors.New("duplicate tensor name")
	ErrOperandNotFound    = errors.New("operand not found")
	ErrUnsupportedStorage = errors.New("unsupported storage")
	ErrUnsupportedWidth   = errors.New("unsupported vector width")
	ErrInvalidShape       = errors.New("invalid shape")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrKernelEmitted      = errors.New("kernel already emitted")
)

// ErrUnimplemented guards features that are asserted off rather than attempted.
var ErrUnimplemented = errors.New("unimplemented feature")

var kindNames = map[error]string{
	ErrShapeMismatch:      "shape_mismatch",
	ErrTypeMismatch:       "type_mismatch",
	ErrDuplicateTile:      "duplicate_tile",
	ErrDuplicateTensor:    "duplicate_tensor",
	ErrOperandNotFound:    "operand_not_found",
	ErrUnsupportedStorage: "unsupported_storage",
	ErrUnsupportedWidth:   "unsupported_width",
	ErrInvalidShape:       "invalid_shape",
	ErrInvalidOperation:   "invalid_operation",
	ErrKernelEmitted:      "kernel_emitted",
	ErrUnimplemented:      "unimplemented",
}

// ContractError is the error every writer call returns on a violation.
type ContractError struct {
	Op     string
	Kind   error
	Detail string
}

// Violation builds a ContractError for op.
func Violation(op string, kind error, detail string) *ContractError {
	return &ContractError{Op: op, Kind: kind, Detail: detail}
}

func (e *ContractError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Detail)
}

func (e *ContractError) Unwrap() error { return e.Kind }

// KindName returns the short label of the violation kind, for metrics.
func (e *ContractError) KindName() string {
	if n, ok := kindNames[e.Kind]; ok {
		return n
	}
	return "unknown"
}

// Must panics if err is non-nil and returns v otherwise. It is the adapter
// for callers that want a violation to abort immediately.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Check panics if err is non-nil.
func Check(err error) {
	if err != nil {
		panic(err)
	}
}
