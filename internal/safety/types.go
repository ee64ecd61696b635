package safety

import (
	"time"

	"github.com/optiinfra/iacengine/internal/engine"
)

// Context is the typed context a Check is evaluated against, replacing the
// untyped context map the source closures captured — per spec.md §9's
// "polymorphic checker functions" design note.
type Context struct {
	Plan          *engine.Plan
	Step          *engine.Step
	Environment   string
	EstimatedCost float64
	ActualCost    float64
	StartedAt     time.Time
	Deadline      time.Time
	ResourceCount int
	SecurityScore int
	MaxTokens     int
	TokensUsed    int
}

// Check is a registered safety policy: a named, phased, severity-rated
// rule evaluated against a Context.
type Check interface {
	ID() string
	Phase() engine.SafetyPhase
	Category() string
	Name() string
	Severity() engine.SafetySeverity
	Evaluate(ctx Context) engine.SafetyCheckResult
}

// PreExecutionReport is the outcome of runPreExecutionChecks.
type PreExecutionReport struct {
	Passed   bool
	Results  []engine.SafetyCheckResult
	Blockers []engine.SafetyCheckResult
}

// DuringExecutionReport is the outcome of runDuringExecutionChecks.
type DuringExecutionReport struct {
	Passed  bool
	Results []engine.SafetyCheckResult
}

// PostExecutionReport is the outcome of runPostExecutionChecks.
type PostExecutionReport struct {
	Passed  bool
	Results []engine.SafetyCheckResult
}
