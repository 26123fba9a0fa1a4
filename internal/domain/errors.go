package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrPermissionDeny = errors.New("permission denied")
	ErrConflict       = errors.New("already exists")
	// ErrDuplicateName is raised by group stores on a name collision. Provisioning
	// recovers from it by re-fetching the group, so callers outside the store rarely see it.
	ErrDuplicateName = errors.New("duplicate group name")
)
