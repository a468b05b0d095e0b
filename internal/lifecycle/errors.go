package lifecycle

import "errors"

// Errors returned by lifecycle operations. They are wrapped with detail via
// fmt.Errorf, so compare with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrDuplicateApplication = errors.New("duplicate application")
	ErrAlreadyEngaged       = errors.New("already engaged")
	ErrRoleUnavailable      = errors.New("role unavailable")
	ErrTeamFull             = errors.New("team full")
	ErrInvalidState         = errors.New("invalid state")

	// ErrInvariant means a project aggregate is internally inconsistent.
	// It is never expected and is not part of Kinds.
	ErrInvariant = errors.New("project invariant violated")
)

// Kinds lists every lifecycle error, in the order callers usually map them.
var Kinds = []error{
	ErrNotFound,
	ErrForbidden,
	ErrDuplicateApplication,
	ErrAlreadyEngaged,
	ErrRoleUnavailable,
	ErrTeamFull,
	ErrInvalidState,
}

// KindOf returns the lifecycle error wrapped by err, or nil.
func KindOf(err error) error {
	for _, kind := range Kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
