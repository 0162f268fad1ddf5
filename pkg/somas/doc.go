// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package somas implements a static tensor memory allocation solver.
//
// Given a computation graph already scheduled into an execution order, and the tensors it
// produces and consumes, it computes one shared memory arena and a byte offset for every
// tensor, such that no two tensors alive at the same time share bytes, while keeping the
// arena small.
//
// The planning pipeline runs forward through these stages, all sharing one PlanningContext:
//
//  1. Registry: the caller (the graph compiler) registers nodes in execution order, tensors,
//     contiguity groups and ref-aliases (in-place updates).
//  2. BuildLiveness: computes each tensor's [start, end] interval in schedule order.
//  3. BuildConstraints: validates contiguity groups and ref-aliases and indexes intervals,
//     so "do these two tensors conflict" is answered without an O(n²) conflict graph.
//  4. Solve: best-fit, decreasing-size placement of the tensors into the arena.
//  5. ResolveHazards: lists the cross-stream synchronizations needed before reused memory
//     can be written.
//  6. NewReport / Validate: recomputes all the invariants and exposes offsets and sizes.
//
// Plan runs all stages. Errors are one of *MalformedGraphError, *UnsatisfiableConstraintError
// or *InternalInvariantViolation, see errors.As.
//
// Planning is deterministic: the same Registry always yields the same offsets.
package somas
