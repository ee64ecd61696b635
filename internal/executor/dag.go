package executor

import (
	"fmt"

	"github.com/optiinfra/iacengine/internal/engine"
)

// validateDAG checks that a plan's dependency graph is acyclic and that
// every depends-on id refers to a step within the same plan, following the
// same DFS-with-recursion-stack cycle detection other_examples' remediation
// planner uses for its own dependency graph.
func validateDAG(plan *engine.Plan) error {
	byID := make(map[string]*engine.Step, len(plan.Steps))
	for _, s := range plan.Steps {
		byID[s.ID] = s
	}
	for _, s := range plan.Steps {
		for _, dep := range s.DependsOn {
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("step %s depends on unknown step %s", s.ID, dep)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(plan.Steps))

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, dep := range byID[id].DependsOn {
			switch color[dep] {
			case gray:
				return fmt.Errorf("circular dependency detected: %s -> %s", id, dep)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for _, s := range plan.Steps {
		if color[s.ID] == white {
			if err := visit(s.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// readySet computes the set of steps eligible for dispatch: not yet
// executed, not completed/failed, and every dependency satisfied.
func readySet(plan *engine.Plan, executed map[string]bool) []*engine.Step {
	ready := make([]*engine.Step, 0)
	for _, s := range plan.Steps {
		if executed[s.ID] {
			continue
		}
		if s.Status == engine.StepStatusCompleted || s.Status == engine.StepStatusFailed {
			continue
		}
		satisfied := true
		for _, dep := range s.DependsOn {
			if !executed[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, s)
		}
	}
	return ready
}
