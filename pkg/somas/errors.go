// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// MalformedGraphError reports a topological inconsistency in the graph given by the caller,
// e.g. a tensor consumed before it is produced.
type MalformedGraphError struct {
	Tensor TensorID
	Node   NodeID
	Reason string
}

// Error implements the error interface.
func (e *MalformedGraphError) Error() string {
	if e.Node == NoNode {
		return fmt.Sprintf("malformed graph: tensor #%d: %s", e.Tensor, e.Reason)
	}
	return fmt.Sprintf("malformed graph: tensor #%d, node #%d: %s", e.Tensor, e.Node, e.Reason)
}

func newMalformedGraphError(tensor TensorID, node NodeID, format string, args ...any) error {
	return errors.WithStack(&MalformedGraphError{Tensor: tensor, Node: node, Reason: fmt.Sprintf(format, args...)})
}

// UnsatisfiableConstraintError reports contiguity or ref-alias declarations that cannot be
// satisfied together. Tensors lists the offending tensors.
type UnsatisfiableConstraintError struct {
	Tensors []TensorID
	Reason  string
}

// Error implements the error interface.
func (e *UnsatisfiableConstraintError) Error() string {
	ids := make([]string, len(e.Tensors))
	for ii, id := range e.Tensors {
		ids[ii] = fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("unsatisfiable constraint on tensors [%s]: %s", strings.Join(ids, ", "), e.Reason)
}

func newUnsatisfiableError(tensors []TensorID, format string, args ...any) error {
	return errors.WithStack(&UnsatisfiableConstraintError{Tensors: tensors, Reason: fmt.Sprintf(format, args...)})
}

// InternalInvariantViolation is returned when the planned layout fails validation, or the solver
// hits an inconsistent state. It always indicates a bug in the planner, not in its input.
type InternalInvariantViolation struct {
	Err error
}

// Error implements the error interface.
func (e *InternalInvariantViolation) Error() string {
	return fmt.Sprintf("internal invariant violation (please report): %v", e.Err)
}

// Unwrap returns the underlying error(s).
func (e *InternalInvariantViolation) Unwrap() error { return e.Err }

// ErrPlanInProgress is returned by Plan if the Registry is already being planned by another goroutine.
var ErrPlanInProgress = errors.New("somas: registry is already being planned")
