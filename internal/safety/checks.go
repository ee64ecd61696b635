package safety

import (
	"fmt"
	"strings"

	"github.com/optiinfra/iacengine/internal/engine"
)

// funcCheck implements Check over a plain evaluator closure, replacing the
// source's heterogeneous closures-over-an-untyped-context with a single
// concrete type implementing a common Evaluate capability, per spec.md §9.
type funcCheck struct {
	id       string
	phase    engine.SafetyPhase
	category string
	name     string
	severity engine.SafetySeverity
	eval     func(ctx Context) engine.SafetyCheckResult
}

func (c *funcCheck) ID() string                       { return c.id }
func (c *funcCheck) Phase() engine.SafetyPhase        { return c.phase }
func (c *funcCheck) Category() string                 { return c.category }
func (c *funcCheck) Name() string                     { return c.name }
func (c *funcCheck) Severity() engine.SafetySeverity  { return c.severity }
func (c *funcCheck) Evaluate(ctx Context) engine.SafetyCheckResult {
	return c.eval(ctx)
}

const maxMonthlyCostUSD = 5000.0
const maxResourceCreationRate = 50
const maxExecutionSeconds = 3600
const minSecurityScore = 80
const maxCostVariance = 0.20

var statefulComponentHints = []string{"rds", "s3", "efs"}

func ok(checkID string, severity engine.SafetySeverity, message string) engine.SafetyCheckResult {
	return engine.SafetyCheckResult{CheckID: checkID, Passed: true, Severity: severity, Message: message, CanProceed: true}
}

func blocked(checkID string, severity engine.SafetySeverity, message string) engine.SafetyCheckResult {
	return engine.SafetyCheckResult{CheckID: checkID, Passed: false, Severity: severity, Message: message, CanProceed: false}
}

func warned(checkID string, severity engine.SafetySeverity, message string, requiresApproval bool) engine.SafetyCheckResult {
	return engine.SafetyCheckResult{CheckID: checkID, Passed: false, Severity: severity, Message: message, CanProceed: true, RequiresApproval: requiresApproval}
}

func hasStepWithAction(plan *engine.Plan, action engine.Action) bool {
	for _, s := range plan.Steps {
		if s.Action == action {
			return true
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	haystack = strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// builtinChecks returns every policy spec.md §4.2 requires, pre-registered
// into a fresh Engine.
func builtinChecks() []Check {
	return []Check{
		&funcCheck{
			id: "production-requires-approval", phase: engine.SafetyPhasePre,
			category: "compliance", name: "Production environment safeguard", severity: engine.SeverityCritical,
			eval: func(ctx Context) engine.SafetyCheckResult {
				if ctx.Environment == "production" && !ctx.Plan.RequiresApproval {
					return blocked("production-requires-approval", engine.SeverityCritical, "production deployments require an approved plan")
				}
				if ctx.Environment == "production" && ctx.Plan.RequiresApproval && ctx.Plan.Approver == "" {
					return blocked("production-requires-approval", engine.SeverityCritical, "production plan is not yet approved")
				}
				return ok("production-requires-approval", engine.SeverityCritical, "production safeguard satisfied")
			},
		},
		&funcCheck{
			id: "cost-limit", phase: engine.SafetyPhasePre,
			category: "cost", name: "Cost limit", severity: engine.SeverityHigh,
			eval: func(ctx Context) engine.SafetyCheckResult {
				if ctx.Plan.EstimatedCost > maxMonthlyCostUSD {
					return blocked("cost-limit", engine.SeverityHigh, fmt.Sprintf("estimated cost %.2f exceeds %.2f/month limit", ctx.Plan.EstimatedCost, maxMonthlyCostUSD))
				}
				return ok("cost-limit", engine.SeverityHigh, "within cost limit")
			},
		},
		&funcCheck{
			id: "security-best-practices-present", phase: engine.SafetyPhasePre,
			category: "security", name: "Security best practices step required", severity: engine.SeverityHigh,
			eval: func(ctx Context) engine.SafetyCheckResult {
				if !hasStepWithAction(ctx.Plan, engine.ActionApplyBestPractices) {
					return blocked("security-best-practices-present", engine.SeverityHigh, "plan has no apply_best_practices step")
				}
				return ok("security-best-practices-present", engine.SeverityHigh, "best-practices step present")
			},
		},
		&funcCheck{
			id: "backup-required-stateful", phase: engine.SafetyPhasePre,
			category: "availability", name: "Backup strategy for stateful components", severity: engine.SeverityCritical,
			eval: func(ctx Context) engine.SafetyCheckResult {
				if ctx.Environment != "production" {
					return ok("backup-required-stateful", engine.SeverityCritical, "non-production, backup not required")
				}
				for _, s := range ctx.Plan.Steps {
					componentType, _ := s.Parameters["component_type"].(string)
					if containsAny(componentType, statefulComponentHints) {
						if _, hasBackup := s.Parameters["backup_strategy"]; !hasBackup {
							return blocked("backup-required-stateful", engine.SeverityCritical, fmt.Sprintf("stateful component %q has no backup_strategy parameter", componentType))
						}
					}
				}
				return ok("backup-required-stateful", engine.SeverityCritical, "stateful components carry a backup strategy")
			},
		},
		&funcCheck{
			id: "destructive-ops-require-rollback", phase: engine.SafetyPhasePre,
			category: "availability", name: "Destructive operations require rollback", severity: engine.SeverityHigh,
			eval: func(ctx Context) engine.SafetyCheckResult {
				for _, s := range ctx.Plan.Steps {
					if s.Type == engine.StepTypeDeploy && s.RollbackAction == "" {
						return blocked("destructive-ops-require-rollback", engine.SeverityHigh, fmt.Sprintf("deploy step %s has no rollback action", s.ID))
					}
				}
				return ok("destructive-ops-require-rollback", engine.SeverityHigh, "every deploy step is rollback-capable")
			},
		},
		&funcCheck{
			id: "resource-creation-rate", phase: engine.SafetyPhasePre,
			category: "availability", name: "Resource creation rate limit", severity: engine.SeverityMedium,
			eval: func(ctx Context) engine.SafetyCheckResult {
				if ctx.ResourceCount > maxResourceCreationRate {
					return blocked("resource-creation-rate", engine.SeverityMedium, fmt.Sprintf("%d resources exceeds the %d-per-execution limit", ctx.ResourceCount, maxResourceCreationRate))
				}
				return ok("resource-creation-rate", engine.SeverityMedium, "within resource creation rate limit")
			},
		},
		&funcCheck{
			id: "execution-timeout", phase: engine.SafetyPhasePre,
			category: "availability", name: "Execution timeout ceiling", severity: engine.SeverityMedium,
			eval: func(ctx Context) engine.SafetyCheckResult {
				if !ctx.Deadline.IsZero() && ctx.Deadline.Sub(ctx.StartedAt).Seconds() > maxExecutionSeconds {
					return blocked("execution-timeout", engine.SeverityMedium, fmt.Sprintf("deadline exceeds the %ds execution ceiling", maxExecutionSeconds))
				}
				return ok("execution-timeout", engine.SeverityMedium, "within execution timeout ceiling")
			},
		},
		&funcCheck{
			id: "require-dry-run-before-apply", phase: engine.SafetyPhasePre,
			category: "compliance", name: "Require dry-run before apply", severity: engine.SeverityHigh,
			eval: func(ctx Context) engine.SafetyCheckResult {
				seenPlan := false
				for _, s := range ctx.Plan.Steps {
					if s.Action == engine.ActionPlanDeployment {
						seenPlan = true
					}
					if s.Action == engine.ActionApplyDeployment && !seenPlan {
						return blocked("require-dry-run-before-apply", engine.SeverityHigh, fmt.Sprintf("apply_deployment step %s is not preceded by plan_deployment", s.ID))
					}
				}
				return ok("require-dry-run-before-apply", engine.SeverityHigh, "every apply is preceded by a plan")
			},
		},
		&funcCheck{
			id: "token-budget", phase: engine.SafetyPhasePre,
			category: "cost", name: "Token budget check", severity: engine.SeverityLow,
			eval: func(ctx Context) engine.SafetyCheckResult {
				if ctx.MaxTokens <= 0 {
					return ok("token-budget", engine.SeverityLow, "token budget check disabled")
				}
				if ctx.TokensUsed > ctx.MaxTokens {
					return blocked("token-budget", engine.SeverityLow, fmt.Sprintf("token usage %d exceeds budget %d", ctx.TokensUsed, ctx.MaxTokens))
				}
				return ok("token-budget", engine.SeverityLow, "within token budget")
			},
		},
		&funcCheck{
			id: "post-deployment-verify", phase: engine.SafetyPhasePost,
			category: "compliance", name: "Post-execution deployment verify", severity: engine.SeverityMedium,
			eval: func(ctx Context) engine.SafetyCheckResult {
				if !hasStepWithAction(ctx.Plan, engine.ActionVerifyDeployment) {
					return warned("post-deployment-verify", engine.SeverityMedium, "plan completed without a verify_deployment step", false)
				}
				return ok("post-deployment-verify", engine.SeverityMedium, "deployment was verified")
			},
		},
		&funcCheck{
			id: "cost-anomaly", phase: engine.SafetyPhasePost,
			category: "cost", name: "Post-execution cost anomaly", severity: engine.SeverityMedium,
			eval: func(ctx Context) engine.SafetyCheckResult {
				if ctx.EstimatedCost <= 0 {
					return ok("cost-anomaly", engine.SeverityMedium, "no cost estimate to compare against")
				}
				variance := (ctx.ActualCost - ctx.EstimatedCost) / ctx.EstimatedCost
				if variance < 0 {
					variance = -variance
				}
				if variance > maxCostVariance {
					return warned("cost-anomaly", engine.SeverityMedium, fmt.Sprintf("actual cost varies %.0f%% from estimate", variance*100), false)
				}
				return ok("cost-anomaly", engine.SeverityMedium, "actual cost within expected variance")
			},
		},
		&funcCheck{
			id: "security-posture-score", phase: engine.SafetyPhasePost,
			category: "security", name: "Security posture score", severity: engine.SeverityHigh,
			eval: func(ctx Context) engine.SafetyCheckResult {
				if ctx.SecurityScore < minSecurityScore {
					return warned("security-posture-score", engine.SeverityHigh, fmt.Sprintf("security posture score %d below %d minimum", ctx.SecurityScore, minSecurityScore), true)
				}
				return ok("security-posture-score", engine.SeverityHigh, "security posture score meets minimum")
			},
		},
		&funcCheck{
			id: "no-production-delete-without-backup", phase: engine.SafetyPhaseDuring,
			category: "availability", name: "No production delete without backup", severity: engine.SeverityCritical,
			eval: func(ctx Context) engine.SafetyCheckResult {
				if ctx.Environment != "production" || ctx.Step == nil {
					return ok("no-production-delete-without-backup", engine.SeverityCritical, "not a production delete")
				}
				if strings.Contains(string(ctx.Step.Action), "destroy") || strings.Contains(string(ctx.Step.Action), "delete") {
					if _, hasBackup := ctx.Step.Parameters["backup_strategy"]; !hasBackup {
						return blocked("no-production-delete-without-backup", engine.SeverityCritical, fmt.Sprintf("step %s deletes production resources without a backup", ctx.Step.ID))
					}
				}
				return ok("no-production-delete-without-backup", engine.SeverityCritical, "no unbacked-up production delete")
			},
		},
	}
}
