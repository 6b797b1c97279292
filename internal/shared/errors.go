package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates a missing or unknown bearer token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the effective permission set does not cover the request.
	ErrForbidden = errors.New("forbidden")
	// ErrScopeViolation indicates a requested factory outside the caller's allowed set.
	ErrScopeViolation = errors.New("factory scope violation")
	// ErrConflict indicates an administrative write lost a duplicate-submission race.
	ErrConflict = errors.New("conflict")
)
