// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/somas/internal/workerspool"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// PlanningContext holds the state of one planning run over a Registry. It is owned by the caller,
// passed to every stage, and there is no global state: independent registries can be planned concurrently.
type PlanningContext struct {
	Registry *Registry
	Config   Config

	// RunID identifies this run in the logs.
	RunID uuid.UUID

	pool         *workerspool.Pool
	livenessDone bool
	constraints  *ConstraintGraph

	// Set by Solve.
	units                          []*placementUnit
	placed                         []bool
	arenaSize, workspaceRegionSize int64

	// Set by ResolveHazards.
	hazards []Hazard
}

// NewPlanningContext creates the context for a new planning run over the registry.
func NewPlanningContext(reg *Registry) *PlanningContext {
	return &PlanningContext{
		Registry: reg,
		Config:   reg.Config(),
		RunID:    uuid.New(),
		pool:     workerspool.NewWithParallelism(reg.Config().Parallelism),
	}
}

// Constraints returns the ConstraintGraph built by BuildConstraints, or nil if it hasn't run yet.
func (pc *PlanningContext) Constraints() *ConstraintGraph { return pc.constraints }

// ArenaSize returns the arena size computed by Solve.
func (pc *PlanningContext) ArenaSize() int64 { return pc.arenaSize }

// Placed returns whether Solve assigned the tensor a place in the arena.
func (pc *PlanningContext) Placed(id TensorID) bool {
	return pc.placed != nil && pc.placed[id]
}

// Hazards returns the hazards found by ResolveHazards.
func (pc *PlanningContext) Hazards() []Hazard { return pc.hazards }

type planningStage struct {
	name string
	fn   func(pc *PlanningContext) error
}

// Run executes all planning stages in order, validating the result if Config.Validate is set.
func (pc *PlanningContext) Run() (*Report, error) {
	stages := []planningStage{
		{"liveness", BuildLiveness},
		{"constraints", BuildConstraints},
		{"solver", Solve},
		{"hazards", ResolveHazards},
	}
	if pc.Config.Validate {
		stages = append(stages, planningStage{"validation", Validate})
	}
	for _, stage := range stages {
		if err := stage.fn(pc); err != nil {
			return nil, errors.WithMessagef(err, "memory planning stage %q", stage.name)
		}
	}
	return NewReport(pc)
}

// Plan runs the whole planning pipeline on the registry, and leaves the results in the tensors
// (Tensor.Offset, Tensor.Interval, ...) and in the returned Report.
//
// Planning is deterministic: planning the same registry again yields the same offsets.
// It returns ErrPlanInProgress if the registry is being planned concurrently.
func Plan(reg *Registry) (report *Report, err error) {
	if !reg.planning.CompareAndSwap(false, true) {
		return nil, errors.WithStack(ErrPlanInProgress)
	}
	defer reg.planning.Store(false)

	pc := NewPlanningContext(reg)
	start := time.Now()
	exception := exceptions.TryCatch[error](func() { report, err = pc.Run() })
	if exception != nil {
		return nil, errors.WithStack(&InternalInvariantViolation{Err: exception})
	}
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("somas[%s]: planned %d tensors in %s: %s", pc.RunID, reg.NumTensors(), time.Since(start), report)
	return report, nil
}
