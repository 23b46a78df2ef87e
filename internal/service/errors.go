package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("missing required field")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrExpiredCode     = errors.New("verification code expired")
	ErrAlreadyLinked   = errors.New("email is already linked to another account")
	ErrAccountNotFound = errors.New("no account found for this email")
	ErrNotification    = errors.New("failed to send email")
	ErrStore           = errors.New("storage error")
)

var (
	ErrEmailRequired      = fmt.Errorf("%w: email", ErrValidation)
	ErrCloudIDRequired    = fmt.Errorf("%w: cloudId", ErrValidation)
	ErrCodeRequired       = fmt.Errorf("%w: code", ErrValidation)
	ErrIdentifierRequired = fmt.Errorf("%w: email or cloudId", ErrValidation)
	ErrSubscribersInvalid = fmt.Errorf("%w: subscribers", ErrValidation)
)

func storeError(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}
