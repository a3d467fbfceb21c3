package badge

import (
	"errors"

	"github.com/rafaeljc/accolade/internal/condition"
)

var (
	// ErrConfiguration marks a badge whose condition is malformed or references
	// unknown metrics/fields. Fatal for that badge only.
	ErrConfiguration = errors.New("badge configuration error")

	// ErrNotFound is returned for unknown users, badges or awards on manual operations.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals that the (user, badge) award already exists.
	// The engine treats it as a successful no-op.
	ErrConflict = errors.New("award already exists")

	// ErrTransientStore wraps storage/network failures. Callers may retry.
	ErrTransientStore = errors.New("transient store error")
)

// ErrorKind is the serializable classification of an AwardResult error.
type ErrorKind string

const (
	KindConfiguration  ErrorKind = "CONFIGURATION"
	KindNotFound       ErrorKind = "NOT_FOUND"
	KindConflict       ErrorKind = "CONFLICT"
	KindTransientStore ErrorKind = "TRANSIENT_STORE"
)

// KindOf classifies err. Condition evaluation errors count as configuration errors.
// Anything unrecognised is treated as transient, since it came from a collaborator.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration), condition.IsConfigError(err):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindTransientStore
	}
}
