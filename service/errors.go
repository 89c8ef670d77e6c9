package service

import (
	"errors"
	"fmt"
)

var (
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("validation failed")
	ErrActiveOrderExists   = errors.New("an active order already exists")
	ErrReviewWindowClosed  = errors.New("review window has closed")
	ErrAlreadyReviewed     = errors.New("order already reviewed")
	ErrChatClosed          = errors.New("chat is closed")
	ErrDuplicateSubmission = errors.New("duplicate submission in progress")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
