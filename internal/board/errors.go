// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package board

import "fmt"

// ValidationError reports a rejected pin field. Validation runs before
// any database call, so a pin that fails it never leaves the process.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports an operation against a pin id that does not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pin %s not found", e.ID)
}

// OwnershipError reports a mutation whose owner token did not match the
// stored one.
type OwnershipError struct {
	ID string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("pin %s belongs to a different author", e.ID)
}

// AuthorizationError reports a moderation operation attempted without
// admin rights.
type AuthorizationError struct {
	Op string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s requires admin rights", e.Op)
}

// RemoteError wraps a storage failure so callers can distinguish it
// from domain errors.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
