package engine

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/optiinfra/iacengine/internal/checkpoint"
	"github.com/optiinfra/iacengine/internal/drift"
	"github.com/optiinfra/iacengine/internal/executor"
	"github.com/optiinfra/iacengine/internal/logger"
	"github.com/optiinfra/iacengine/internal/metrics"
	"github.com/optiinfra/iacengine/internal/rollback"
	"github.com/optiinfra/iacengine/internal/safety"
)

// Handler provides HTTP handlers for the plan executor, safety engine,
// rollback manager, and drift detector/analyzer, grouped behind a single
// gin.Engine the way the teacher's coordination.Handler does.
type Handler struct {
	exec             *executor.Executor
	safety           *safety.Engine
	rollback         *rollback.Manager
	detector         *drift.Detector
	analyzer         *drift.Analyzer
	store            *checkpoint.Store
	log              *logger.Logger
	metrics          *metrics.Metrics
	maxTokensPerTask int

	activePlans int64
}

// NewHandler wires the HTTP surface to every core subsystem. maxTokensPerTask
// is the engine-wide token budget cap (config.MaxTokensPerTask; 0 disables
// the token-budget safety check). m may be nil in tests that don't care
// about metrics.
func NewHandler(exec *executor.Executor, safetyEngine *safety.Engine, rollbackMgr *rollback.Manager, detector *drift.Detector, analyzer *drift.Analyzer, store *checkpoint.Store, log *logger.Logger, m *metrics.Metrics, maxTokensPerTask int) *Handler {
	return &Handler{
		exec:             exec,
		safety:           safetyEngine,
		rollback:         rollbackMgr,
		detector:         detector,
		analyzer:         analyzer,
		store:            store,
		log:              log,
		metrics:          m,
		maxTokensPerTask: maxTokensPerTask,
	}
}

// submitPlanRequest is a Plan plus the execution context spec.md §2
// describes the caller submitting alongside it — the fields the Safety
// Policy Engine's checks read but that aren't themselves part of the
// Plan's declarative shape.
type submitPlanRequest struct {
	Plan
	TokensUsed    int     `json:"tokens_used"`
	ActualCost    float64 `json:"actual_cost"`
	SecurityScore int     `json:"security_score"`
}

// resourceCount approximates §4.2's resource-creation-rate input as one
// resource per non-validate step, since the plan carries no separate
// resource inventory.
func resourceCount(plan *Plan) int {
	count := 0
	for _, s := range plan.Steps {
		if s.Type != StepTypeValidate {
			count++
		}
	}
	return count
}

func (h *Handler) safetyContext(plan *Plan, req submitPlanRequest) safety.Context {
	startedAt := time.Now()
	var deadline time.Time
	if plan.EstimatedDuration > 0 {
		deadline = startedAt.Add(plan.EstimatedDuration)
	}
	return safety.Context{
		Plan:          plan,
		Environment:   plan.Environment,
		EstimatedCost: plan.EstimatedCost,
		ActualCost:    req.ActualCost,
		StartedAt:     startedAt,
		Deadline:      deadline,
		ResourceCount: resourceCount(plan),
		SecurityScore: req.SecurityScore,
		MaxTokens:     h.maxTokensPerTask,
		TokensUsed:    req.TokensUsed,
	}
}

// RegisterRoutes registers every engine route against a gin.Engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	plans := r.Group("/plans")
	{
		plans.POST("", h.SubmitPlan)
		plans.POST("/:id/resume", h.ResumePlan)
	}

	steps := r.Group("/steps")
	{
		steps.POST("/:id/rollback", h.RollbackStep)
	}

	executions := r.Group("/executions")
	{
		executions.GET("/:id/logs", h.ExecutionLogs)
		executions.GET("/:id/artifacts", h.ExecutionArtifacts)
	}

	rb := r.Group("/rollback")
	{
		rb.POST("", h.Rollback)
		rb.GET("/:id", h.RollbackStatus)
	}

	driftGroup := r.Group("/drift")
	{
		driftGroup.POST("/detect", h.DetectDrift)
		driftGroup.POST("/remediate", h.RemediateDrift)
	}
}

// SubmitPlan runs pre-execution safety checks and, if they pass, executes
// the plan synchronously. During- and post-execution checks run as
// side-effectless observers over the same execution context (spec.md §2).
func (h *Handler) SubmitPlan(c *gin.Context) {
	var req submitPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan := req.Plan
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}

	safetyCtx := h.safetyContext(&plan, req)
	report := h.safety.RunPreExecutionChecks(safetyCtx)
	if !report.Passed {
		c.JSON(http.StatusForbidden, gin.H{"error": "plan blocked by safety checks", "blockers": report.Blockers})
		return
	}

	h.trackActivePlan(1)
	defer h.trackActivePlan(-1)

	results, err := h.exec.ExecutePlan(c.Request.Context(), &plan, safetyCtx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "results": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan_id": plan.ID, "results": results})
}

func (h *Handler) trackActivePlan(delta int64) {
	count := atomic.AddInt64(&h.activePlans, delta)
	if h.metrics != nil {
		h.metrics.UpdateActivePlans(float64(count))
	}
}

// ResumePlan resumes a plan from its latest checkpoint.
func (h *Handler) ResumePlan(c *gin.Context) {
	planID := c.Param("id")

	var req submitPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan := req.Plan
	plan.ID = planID

	results, err := h.exec.ResumePlan(c.Request.Context(), &plan, h.safetyContext(&plan, req))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan_id": plan.ID, "results": results})
}

// RollbackStep rolls back a single step using its rollback_action.
func (h *Handler) RollbackStep(c *gin.Context) {
	stepID := c.Param("id")

	var req struct {
		Step          Step   `json:"step"`
		ExecutionID   string `json:"execution_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Step.ID = stepID

	result, err := h.exec.RollbackStep(c.Request.Context(), &req.Step, req.ExecutionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExecutionLogs returns the accumulated log entries for an execution id.
func (h *Handler) ExecutionLogs(c *gin.Context) {
	executionID := c.Param("id")
	c.JSON(http.StatusOK, gin.H{"execution_id": executionID, "logs": h.exec.GetLogs(executionID)})
}

// ExecutionArtifacts returns the accumulated artifacts for an execution id.
func (h *Handler) ExecutionArtifacts(c *gin.Context) {
	executionID := c.Param("id")
	c.JSON(http.StatusOK, gin.H{"execution_id": executionID, "artifacts": h.exec.GetArtifacts(executionID)})
}

// Rollback executes a full rollback against a saved execution state.
func (h *Handler) Rollback(c *gin.Context) {
	var opts rollback.RollbackOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.rollback.Rollback(c.Request.Context(), opts)
	c.JSON(http.StatusOK, result)
}

// RollbackStatus reports whether an execution can be rolled back, and its
// saved state when available.
func (h *Handler) RollbackStatus(c *gin.Context) {
	executionID := c.Param("id")
	c.JSON(http.StatusOK, h.rollback.CanRollback(executionID))
}

// DetectDrift runs one drift detection pass against the requested provider.
func (h *Handler) DetectDrift(c *gin.Context) {
	var opts drift.DetectOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := h.detector.DetectDrift(c.Request.Context(), opts)
	c.JSON(http.StatusOK, report)
}

// RemediateDrift builds a remediation plan from a drift report and,
// unless dry_run is set, executes it.
func (h *Handler) RemediateDrift(c *gin.Context) {
	var req struct {
		Report *DriftReport           `json:"report" binding:"required"`
		Opts   drift.RemediateOptions `json:"opts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan := h.analyzer.CreateRemediationPlan(req.Report)
	result := h.analyzer.Remediate(c.Request.Context(), plan, req.Opts)
	c.JSON(http.StatusOK, gin.H{"plan": plan, "result": result})
}
