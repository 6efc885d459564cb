package kstore

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey indicates an input collection repeats an identity key.
	ErrDuplicateKey = errors.New("kstore: duplicate identity key")
	// ErrStaleBase indicates a diff references an entry its base does not
	// contain, so it was computed against a different snapshot.
	ErrStaleBase = errors.New("kstore: diff does not match base snapshot")
	// ErrSharedDatasetMutation indicates a write tried to add, remove or edit
	// a dataset owned by a read-only shared store.
	ErrSharedDatasetMutation = errors.New("kstore: shared dataset is read-only")
)

// DuplicateKeyError reports an identity key that appears twice in one scope.
type DuplicateKeyError struct {
	Scope  string
	Key    string
	First  int
	Second int
}

func (e *DuplicateKeyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("kstore: duplicate key %q in %s (positions %d and %d)", e.Key, e.Scope, e.First, e.Second)
}

func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}

// StaleBaseError reports the scope and key a diff expected but did not find.
type StaleBaseError struct {
	Scope  string
	Key    string
	Action Action
}

func (e *StaleBaseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("kstore: diff %s %q in %s but the base does not contain it", e.Action, e.Key, e.Scope)
}

func (e *StaleBaseError) Unwrap() error {
	return ErrStaleBase
}

// SharedDatasetMutationError names the shared dataset a write tried to touch.
type SharedDatasetMutationError struct {
	Connection string
	Table      string
	Action     Action
}

func (e *SharedDatasetMutationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("kstore: dataset connection=%q table=%q is provided by a shared store and cannot be %s", e.Connection, e.Table, e.Action)
}

func (e *SharedDatasetMutationError) Unwrap() error {
	return ErrSharedDatasetMutation
}

// Action names the kind of change a diff entry describes.
type Action string

const (
	ActionAdded    Action = "added"
	ActionRemoved  Action = "removed"
	ActionModified Action = "modified"
)
