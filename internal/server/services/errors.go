// Package services implements the user, vault and element use cases on top of storage.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/server/storage"
)

// storageErr переводит ошибки хранилища в таксономию common
func storageErr(err error) error {
	if err == nil {
		return nil
	}

	var dup *storage.DuplicateError
	switch {
	case errors.As(err, &dup):
		return common.Conflictf("%s already exists", dup.Field)
	case errors.Is(err, storage.ErrMemberAlreadyExists):
		return common.Conflictf("%v", storage.ErrMemberAlreadyExists)
	case errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrVaultNotFound),
		errors.Is(err, storage.ErrMemberNotFound),
		errors.Is(err, storage.ErrElementNotFound),
		errors.Is(err, storage.ErrAttachmentNotFound),
		errors.Is(err, storage.ErrBlobNotFound):
		return fmt.Errorf("%w: %v", common.ErrNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	default:
		return err
	}
}

func validationErr(err error) error {
	return fmt.Errorf("%w: %v", common.ErrValidation, err)
}
