package service

import "errors"

var (
	ErrNotFound           = errors.New("not_found")
	ErrAlreadyTerminal    = errors.New("already_terminal")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidOutcome     = errors.New("invalid_outcome")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailTaken         = errors.New("email_taken")
)
