// Package errors defines the kind-tagged error taxonomy shared by
// the mesh client. Every public operation returns an explicit error
// carrying a Kind; nothing panics across package boundaries.
package errors

import (
	"errors"
	"fmt"
)

// Base error values usable with errors.Is.
var (
	ErrNotConnected = errors.New("not connected to mesh gateway")
	ErrRateLimited  = errors.New("rate limited")
	ErrPermission   = errors.New("permission denied")
	ErrNotFound     = errors.New("not found")
	ErrTooLarge     = errors.New("exceeds size limit")
	ErrInvalidInput = errors.New("invalid input")
	ErrDisabled     = errors.New("feature disabled")
)

// Kind categorizes a failure per the recovery it demands.
type Kind string

const (
	KindTransport   Kind = "transport"    // tear down, reconnect with backoff
	KindAuth        Kind = "auth"         // tear down; give up after max reconnects
	KindProtocol    Kind = "protocol"     // drop envelope, log
	KindRateLimited Kind = "rate-limited" // user-visible, not retried
	KindPermission  Kind = "permission"   // user-visible, not retried
	KindNotFound    Kind = "not-found"    // user-visible, no retry
	KindCapacity    Kind = "capacity"     // drop or refuse at the API
	KindInternal    Kind = "internal"     // invariant violation
)

// MeshError is a structured error for mesh operations.
type MeshError struct {
	Kind Kind
	Op   string // operation that failed, e.g. "send_tell"
	Err  error
}

func (e *MeshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
}

func (e *MeshError) Unwrap() error { return e.Err }

// Is lets errors.Is match base errors by kind.
func (e *MeshError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrPermission:
		return e.Kind == KindPermission
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrTooLarge:
		return e.Kind == KindCapacity
	}
	return errors.Is(e.Err, target)
}

// New builds a kind-tagged error.
func New(kind Kind, op string, err error) *MeshError {
	return &MeshError{Kind: kind, Op: op, Err: err}
}

// Newf builds a kind-tagged error from a format string.
func Newf(kind Kind, op, format string, args ...any) *MeshError {
	return &MeshError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from an error chain, defaulting to
// KindInternal for untagged errors.
func KindOf(err error) Kind {
	var me *MeshError
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindInternal
}

// UserMessage renders an error as the one-line text shown to the
// invoking player. Transport detail never leaks here.
func UserMessage(err error) string {
	var me *MeshError
	if errors.As(err, &me) {
		switch me.Kind {
		case KindRateLimited:
			return "You are sending messages too quickly. Please wait."
		case KindPermission:
			return "You don't have permission to do that."
		case KindNotFound:
			if me.Err != nil {
				return me.Err.Error()
			}
			return "Target not found."
		case KindCapacity:
			return "Your message is too long."
		case KindTransport, KindAuth:
			return "MudVault Mesh is not connected."
		}
	}
	if errors.Is(err, ErrNotConnected) {
		return "MudVault Mesh is not connected."
	}
	if errors.Is(err, ErrDisabled) {
		return "That feature is disabled."
	}
	if errors.Is(err, ErrInvalidInput) && err.Error() != "" {
		return err.Error()
	}
	return "Something went wrong. Try again later."
}
