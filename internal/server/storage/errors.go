package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that a unique user field is already taken
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrVaultNotFound indicates that vault was not found
	ErrVaultNotFound = errors.New("vault not found")

	// ErrMemberNotFound indicates that the user is not a member of the vault
	ErrMemberNotFound = errors.New("member not found")

	// ErrMemberAlreadyExists indicates that the user is already a member of the vault
	ErrMemberAlreadyExists = errors.New("user already in vault")

	// ErrElementNotFound indicates that element was not found
	ErrElementNotFound = errors.New("element not found")

	// ErrAttachmentNotFound indicates that attachment was not found on the element
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrBlobNotFound indicates that blob storage has no object for the reference
	ErrBlobNotFound = errors.New("blob not found")
)

// DuplicateError reports which unique user field collided.
// errors.Is(err, ErrUserAlreadyExists) holds for it.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return e.Field + " already exists"
}

// Is makes DuplicateError match ErrUserAlreadyExists.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrUserAlreadyExists
}
