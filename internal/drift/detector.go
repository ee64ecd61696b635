package drift

import (
	"context"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/optiinfra/iacengine/internal/adapter"
	"github.com/optiinfra/iacengine/internal/engine"
	"github.com/optiinfra/iacengine/internal/metrics"
)

// Detector compares declared configuration against actual infrastructure
// state across the three provider dialects.
type Detector struct {
	terraform  *adapter.TerraformAdapter
	kubernetes *adapter.KubernetesAdapter
	helm       *adapter.HelmAdapter
	state      *adapter.StateAdapter
	metrics    *metrics.Metrics
}

// NewDetector builds a Drift Detector over the adapters it needs for each
// provider dialect. Any of them may be nil; an unreachable or
// unconfigured adapter yields an empty, successful report rather than an
// error, per spec.md §4.4/§7. m may be nil in tests that don't care about
// metrics.
func NewDetector(terraform *adapter.TerraformAdapter, kubernetes *adapter.KubernetesAdapter, helm *adapter.HelmAdapter, state *adapter.StateAdapter, m *metrics.Metrics) *Detector {
	return &Detector{terraform: terraform, kubernetes: kubernetes, helm: helm, state: state, metrics: m}
}

// DetectDrift runs one detection pass and always returns a report, even
// when an adapter is unreachable.
func (d *Detector) DetectDrift(ctx context.Context, opts DetectOptions) *engine.DriftReport {
	startedAt := time.Now()
	report := &engine.DriftReport{
		Provider:    opts.Provider,
		WorkDir:     opts.WorkDir,
		Environment: opts.Environment,
		GeneratedAt: startedAt,
		Resources:   []engine.ResourceDrift{},
	}

	var errs []string
	switch opts.Provider {
	case engine.ProviderTerraform:
		report.Resources, errs = d.detectTerraform(ctx, opts)
	case engine.ProviderKubernetes:
		report.Resources, errs = d.detectStateBacked(ctx, opts)
	case engine.ProviderHelm:
		report.Resources, errs = d.detectStateBacked(ctx, opts)
	default:
		errs = []string{"unsupported provider: " + string(opts.Provider)}
	}
	report.Errors = errs

	report.Summary = summarize(report.Resources)
	report.Duration = time.Since(startedAt)
	d.recordDriftRun(opts.Provider, report.Summary, report.Duration.Seconds())
	return report
}

func (d *Detector) recordDriftRun(provider engine.Provider, summary engine.DriftSummary, seconds float64) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordDriftRun(string(provider), seconds)
	for severity, count := range summary.BySeverity {
		d.metrics.UpdateDriftedResources(string(provider), string(severity), float64(count))
	}
}

// detectTerraform plans a work dir and classifies each changed resource as
// drift unless it is a pure no-op or a create with no prior state.
func (d *Detector) detectTerraform(ctx context.Context, opts DetectOptions) ([]engine.ResourceDrift, []string) {
	if d.terraform == nil {
		return nil, nil
	}

	vars, err := parseVarFile(opts.VarFile)
	if err != nil {
		return nil, []string{err.Error()}
	}

	if opts.Refresh {
		if _, err := d.terraform.State(ctx, adapter.StateRequest{WorkDir: opts.WorkDir}); err != nil {
			return nil, []string{"refresh failed: " + err.Error()}
		}
	}

	resp, err := d.terraform.Plan(ctx, adapter.PlanRequest{WorkDir: opts.WorkDir, Variables: vars})
	if err != nil {
		return nil, nil
	}

	resources := make([]engine.ResourceDrift, 0, len(resp.Resources))
	now := time.Now()
	for _, change := range resp.Resources {
		rd, ok := classifyTerraformChange(change, now)
		if ok {
			resources = append(resources, rd)
		}
	}
	return resources, nil
}

// classifyTerraformChange turns one terraform plan resource change into a
// ResourceDrift, or reports ok=false when the change is a no-op or a
// create with no prior state (neither counts as drift).
func classifyTerraformChange(change map[string]interface{}, now time.Time) (engine.ResourceDrift, bool) {
	address, _ := change["address"].(string)
	resourceType, _ := change["type"].(string)
	action, _ := change["action"].(string)

	before, _ := change["before"].(map[string]interface{})
	after, _ := change["after"].(map[string]interface{})

	switch action {
	case "", "no-op":
		return engine.ResourceDrift{}, false
	case "create":
		if before == nil {
			return engine.ResourceDrift{}, false
		}
		return resourceDrift(address, resourceType, engine.DriftAdded, nil, after, "", now), true
	case "delete":
		return resourceDrift(address, resourceType, engine.DriftRemoved, before, nil, "", now), true
	default:
		items := diffAttributes(resourceType, before, after)
		if len(items) == 0 {
			return engine.ResourceDrift{}, false
		}
		return engine.ResourceDrift{
			Address: address, Provider: engine.ProviderTerraform, ResourceType: resourceType,
			Drifts: items, DetectedAt: now,
		}, true
	}
}

func resourceDrift(address, resourceType string, driftType engine.DriftType, before, after map[string]interface{}, attribute string, now time.Time) engine.ResourceDrift {
	severity := severityFor(resourceType, attribute)
	return engine.ResourceDrift{
		Address: address, Provider: engine.ProviderTerraform, ResourceType: resourceType,
		DetectedAt: now,
		Drifts: []engine.DriftItem{{
			ResourceID: address, ResourceType: resourceType, ResourceName: address,
			DriftType: driftType, Severity: severity,
			Expected: before, Actual: after,
			Description: describeDrift(driftType, address),
			Remediation: remediationHint(driftType),
			AutoFixable: driftType != engine.DriftRemoved,
		}},
	}
}

// diffAttributes compares top-level keys only between before/after, per
// spec.md §9's "drift diff traversal" design note — one cmp.Diff call per
// top-level key present on either side, never a single recursive diff over
// the whole object.
func diffAttributes(resourceType string, before, after map[string]interface{}) []engine.DriftItem {
	items := make([]engine.DriftItem, 0)

	keys := make(map[string]bool)
	for k := range before {
		keys[k] = true
	}
	for k := range after {
		keys[k] = true
	}

	for key := range keys {
		bv, af := before[key], after[key]
		if cmp.Diff(bv, af) == "" {
			continue
		}
		items = append(items, engine.DriftItem{
			ResourceType: resourceType,
			DriftType:    engine.DriftModified,
			Severity:     severityFor(resourceType, key),
			Attribute:    key,
			Expected:     bv,
			Actual:       af,
			Description:  "attribute " + key + " differs from declared configuration",
			Remediation:  "update resource to match declared configuration",
			AutoFixable:  true,
		})
	}
	return items
}

// detectStateBacked handles kubernetes and helm: both are backed by the
// State adapter's declared/actual pair rather than a provider-native plan.
func (d *Detector) detectStateBacked(ctx context.Context, opts DetectOptions) ([]engine.ResourceDrift, []string) {
	if d.state == nil {
		return nil, nil
	}

	declared, err := d.state.Declared(ctx, adapter.StateRequest{WorkDir: opts.WorkDir})
	if err != nil {
		return nil, nil
	}
	actual, err := d.state.Actual(ctx, adapter.StateRequest{WorkDir: opts.WorkDir})
	if err != nil {
		return nil, nil
	}

	declaredByID := indexByID(declared.Resources)
	actualByID := indexByID(actual.Resources)
	now := time.Now()

	resources := make([]engine.ResourceDrift, 0)
	for id, d1 := range declaredByID {
		resourceType, _ := d1["type"].(string)
		if d2, ok := actualByID[id]; ok {
			items := diffAttributes(resourceType, d1, d2)
			if len(items) > 0 {
				resources = append(resources, engine.ResourceDrift{
					Address: id, Provider: opts.Provider, ResourceType: resourceType,
					Drifts: items, DetectedAt: now,
				})
			}
		} else {
			resources = append(resources, resourceDrift(id, resourceType, engine.DriftRemoved, d1, nil, "", now))
		}
	}
	for id, a1 := range actualByID {
		if _, ok := declaredByID[id]; !ok {
			resourceType, _ := a1["type"].(string)
			resources = append(resources, resourceDrift(id, resourceType, engine.DriftAdded, nil, a1, "", now))
		}
	}
	return resources, nil
}

func indexByID(resources []map[string]interface{}) map[string]map[string]interface{} {
	byID := make(map[string]map[string]interface{}, len(resources))
	for _, r := range resources {
		if id, ok := r["id"].(string); ok {
			byID[id] = r
		}
	}
	return byID
}

var criticalHints = []string{"security_group", "iam", "policy", "password", "secret", "key", "encryption", "kms"}
var highHints = []string{"vpc", "subnet", "instance", "cluster", "node", "ingress"}
var mediumHints = []string{"bucket", "storage", "config", "database", "rds"}

// severityFor implements spec.md §4.4's severity rubric over a resource
// type or attribute name.
func severityFor(resourceType, attribute string) engine.SafetySeverity {
	haystack := strings.ToLower(resourceType + " " + attribute)
	switch {
	case containsAny(haystack, criticalHints):
		return engine.SeverityCritical
	case containsAny(haystack, highHints):
		return engine.SeverityHigh
	case containsAny(haystack, mediumHints):
		return engine.SeverityMedium
	case strings.Contains(strings.ToLower(attribute), "tag"):
		return engine.SeverityLow
	default:
		return engine.SeverityMedium
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func describeDrift(driftType engine.DriftType, address string) string {
	switch driftType {
	case engine.DriftAdded:
		return address + " exists in actual state but is not declared"
	case engine.DriftRemoved:
		return address + " is declared but missing from actual state"
	default:
		return address + " differs from declared configuration"
	}
}

func remediationHint(driftType engine.DriftType) string {
	switch driftType {
	case engine.DriftAdded:
		return "import into state or remove the unmanaged resource"
	case engine.DriftRemoved:
		return "re-apply to recreate the missing resource"
	default:
		return "apply to reconcile with declared configuration"
	}
}

func parseVarFile(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var vars map[string]interface{}
	if err := yaml.Unmarshal(raw, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

func summarize(resources []engine.ResourceDrift) engine.DriftSummary {
	summary := engine.DriftSummary{
		TotalResources: len(resources),
		ByDriftType:    make(map[engine.DriftType]int),
		BySeverity:     make(map[engine.SafetySeverity]int),
	}

	for _, r := range resources {
		if len(r.Drifts) == 0 {
			summary.UnchangedResources++
			continue
		}
		summary.DriftedResources++
		for _, item := range r.Drifts {
			summary.ByDriftType[item.DriftType]++
			summary.BySeverity[item.Severity]++
			if item.AutoFixable {
				summary.AutoFixable++
			}
		}
	}
	return summary
}
