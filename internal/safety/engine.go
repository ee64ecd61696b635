// Package safety implements the Safety Policy Engine: a pluggable registry
// of pre-, during-, and post-execution checks classified into blockers,
// warnings, and approvals.
package safety

import (
	"fmt"
	"sync"

	"github.com/optiinfra/iacengine/internal/engine"
	"github.com/optiinfra/iacengine/internal/metrics"
)

// Engine holds the registered Checks in a read-mostly map guarded by a
// RWMutex, matching the teacher's registry.mu convention: registration is
// rare, evaluation is frequent.
type Engine struct {
	mu      sync.RWMutex
	checks  map[string]Check
	metrics *metrics.Metrics
}

// NewEngine builds a Safety Policy Engine preloaded with every built-in
// policy spec.md §4.2 names. m may be nil in tests that don't care about
// metrics.
func NewEngine(m *metrics.Metrics) *Engine {
	e := &Engine{checks: make(map[string]Check), metrics: m}
	for _, c := range builtinChecks() {
		e.checks[c.ID()] = c
	}
	return e
}

func (e *Engine) recordOutcomes(phase engine.SafetyPhase, results []engine.SafetyCheckResult) {
	if e.metrics == nil {
		return
	}
	for _, r := range results {
		outcome := "passed"
		if !r.Passed {
			outcome = "failed"
		}
		e.metrics.RecordSafetyCheckOutcome(string(phase), outcome)
	}
}

// Register adds or replaces a check in the registry.
func (e *Engine) Register(c Check) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checks[c.ID()] = c
}

// Unregister removes a check from the registry.
func (e *Engine) Unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.checks, id)
}

func (e *Engine) checksForPhase(phase engine.SafetyPhase) []Check {
	e.mu.RLock()
	defer e.mu.RUnlock()

	matched := make([]Check, 0, len(e.checks))
	for _, c := range e.checks {
		if c.Phase() == phase {
			matched = append(matched, c)
		}
	}
	return matched
}

// RunPreExecutionChecks evaluates every pre-execution check. A panicking
// checker yields a synthetic blocking result rather than crashing the
// engine.
func (e *Engine) RunPreExecutionChecks(ctx Context) PreExecutionReport {
	results := e.evaluateAll(engine.SafetyPhasePre, ctx, func(checkID string) engine.SafetyCheckResult {
		return engine.SafetyCheckResult{
			CheckID:          checkID,
			Passed:           false,
			Severity:         engine.SeverityHigh,
			Message:          "pre-execution check panicked",
			CanProceed:       false,
			RequiresApproval: true,
		}
	})

	blockers := make([]engine.SafetyCheckResult, 0)
	for _, r := range results {
		if !r.Passed && !r.CanProceed {
			blockers = append(blockers, r)
		}
	}

	e.recordOutcomes(engine.SafetyPhasePre, results)

	return PreExecutionReport{
		Passed:   len(blockers) == 0,
		Results:  results,
		Blockers: blockers,
	}
}

// RunDuringExecutionChecks evaluates every during-execution check as a
// side-effectless observer.
func (e *Engine) RunDuringExecutionChecks(ctx Context) DuringExecutionReport {
	results := e.evaluateAll(engine.SafetyPhaseDuring, ctx, func(checkID string) engine.SafetyCheckResult {
		return engine.SafetyCheckResult{
			CheckID:    checkID,
			Passed:     false,
			Severity:   engine.SeverityHigh,
			Message:    "during-execution check panicked",
			CanProceed: false,
		}
	})

	passed := true
	for _, r := range results {
		if !r.Passed && !r.CanProceed {
			passed = false
			break
		}
	}

	e.recordOutcomes(engine.SafetyPhaseDuring, results)
	return DuringExecutionReport{Passed: passed, Results: results}
}

// RunPostExecutionChecks evaluates every post-execution check. Post-phase
// failures never block: execution already happened.
func (e *Engine) RunPostExecutionChecks(ctx Context) PostExecutionReport {
	results := e.evaluateAll(engine.SafetyPhasePost, ctx, func(checkID string) engine.SafetyCheckResult {
		return engine.SafetyCheckResult{
			CheckID:    checkID,
			Passed:     false,
			Severity:   engine.SeverityMedium,
			Message:    "post-execution check panicked",
			CanProceed: true,
		}
	})

	passed := true
	for _, r := range results {
		if !r.Passed {
			passed = false
			break
		}
	}

	e.recordOutcomes(engine.SafetyPhasePost, results)
	return PostExecutionReport{Passed: passed, Results: results}
}

func (e *Engine) evaluateAll(phase engine.SafetyPhase, ctx Context, onPanic func(checkID string) engine.SafetyCheckResult) (results []engine.SafetyCheckResult) {
	checks := e.checksForPhase(phase)
	results = make([]engine.SafetyCheckResult, 0, len(checks))
	for _, c := range checks {
		results = append(results, e.safeEvaluate(c, ctx, onPanic))
	}
	return results
}

func (e *Engine) safeEvaluate(c Check, ctx Context, onPanic func(checkID string) engine.SafetyCheckResult) (result engine.SafetyCheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = onPanic(c.ID())
			result.Message = fmt.Sprintf("%s: %v", result.Message, r)
		}
	}()
	return c.Evaluate(ctx)
}
