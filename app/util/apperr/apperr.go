package apperr

import (
	"errors"

	"github.com/samber/oops"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrUpstream   = errors.New("upstream failure")
	ErrConflict   = errors.New("already exists")
)

const (
	CodeValidation = "validation"
	CodeNotFound   = "not_found"
	CodeUpstream   = "upstream"
	CodeConflict   = "conflict"
)

func Validation(domain, format string, args ...any) error {
	return oops.In(domain).Code(CodeValidation).Wrapf(ErrValidation, format, args...)
}

func NotFound(domain, format string, args ...any) error {
	return oops.In(domain).Code(CodeNotFound).Wrapf(ErrNotFound, format, args...)
}

func Conflict(domain, format string, args ...any) error {
	return oops.In(domain).Code(CodeConflict).Wrapf(ErrConflict, format, args...)
}

// Upstream marks err as a failure of a collaborator (completion call or storage).
// Errors that already carry a kind are returned wrapped but keep that kind.
func Upstream(domain string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	if Kind(err) != nil {
		return oops.In(domain).Wrapf(err, format, args...)
	}

	return oops.In(domain).Code(CodeUpstream).Wrapf(errors.Join(ErrUpstream, err), format, args...)
}

// Kind returns the sentinel err was built from, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrUpstream} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}

// Code returns the code matching Kind(err), or "".
func Code(err error) string {
	switch Kind(err) {
	case ErrValidation:
		return CodeValidation
	case ErrNotFound:
		return CodeNotFound
	case ErrConflict:
		return CodeConflict
	case ErrUpstream:
		return CodeUpstream
	default:
		return ""
	}
}
