// Package apperr holds the error kinds shared by the queue's domain packages.
// Callers match them with errors.Is against the sentinels; the typed errors
// carry the details.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflicts         = errors.New("conflicting test results")
	ErrIncomplete        = errors.New("incomplete test runs")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s unavailable", e.Kind)
	}
	return fmt.Sprintf("%s %q unavailable", e.Kind, e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AuthorizationError reports that the caller lacks a role required by Action.
type AuthorizationError struct {
	Action string
	Need   []string
}

func (e AuthorizationError) Error() string {
	if e.Action == "" {
		return "permission denied"
	}
	return fmt.Sprintf("permission denied: %s", e.Action)
}

func (e AuthorizationError) Is(target error) bool { return target == ErrUnauthorized }

type TransitionError struct {
	Subject string
	From    string
	To      string
	Reason  string
}

func (e TransitionError) Error() string {
	msg := fmt.Sprintf("invalid %s transition: %s -> %s", e.Subject, e.From, e.To)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
