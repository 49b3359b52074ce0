package docstore

import (
	"fmt"

	"lexicon/pkg/platform/sentinel"
)

type preconditionKind int

const (
	preconditionVersion preconditionKind = iota + 1
	preconditionNotExist
)

// Precondition guards a write.
type Precondition struct {
	kind    preconditionKind
	version int64
}

// IfVersion requires the document to exist at exactly version v.
func IfVersion(v int64) Precondition {
	return Precondition{kind: preconditionVersion, version: v}
}

// MustNotExist makes the write create-only.
func MustNotExist() Precondition {
	return Precondition{kind: preconditionNotExist}
}

// IfMatch guards a read-modify-write with the state observed in s:
// the version when s existed, otherwise create-only.
func IfMatch(s Snapshot) Precondition {
	if s.Exists() {
		return IfVersion(s.Version())
	}
	return MustNotExist()
}

// Conditions is the folded form of a precondition list that backends evaluate.
type Conditions struct {
	Version      int64
	HasVersion   bool
	MustNotExist bool
}

// Resolve folds preconditions. The last version precondition wins.
func Resolve(preconditions []Precondition) Conditions {
	var c Conditions
	for _, p := range preconditions {
		switch p.kind {
		case preconditionVersion:
			c.Version = p.version
			c.HasVersion = true
		case preconditionNotExist:
			c.MustNotExist = true
		}
	}
	return c
}

// Empty reports whether the write is unconditional.
func (c Conditions) Empty() bool {
	return !c.HasVersion && !c.MustNotExist
}

// Check evaluates the conditions against the current state of the document at path.
func (c Conditions) Check(path string, current int64, exists bool) error {
	if c.MustNotExist && exists {
		return &ConflictError{Path: path, Current: current, Reason: "document already exists"}
	}
	if c.HasVersion {
		if !exists {
			return &ConflictError{Path: path, Expected: c.Version, Reason: "document does not exist"}
		}
		if current != c.Version {
			return &ConflictError{Path: path, Expected: c.Version, Current: current, Reason: "version mismatch"}
		}
	}
	return nil
}

// ConflictError reports a failed write precondition.
type ConflictError struct {
	Path     string
	Expected int64
	Current  int64
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s (expected version %d, current %d)", e.Path, e.Reason, e.Expected, e.Current)
}

// Is lets errors.Is match sentinel.ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == sentinel.ErrConflict
}
