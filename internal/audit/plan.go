package audit

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"provenance-audit/internal/derived"
)

// DefaultTolerance is the relative tolerance for composite derivations.
const DefaultTolerance = 1e-6

//go:embed default_plan.yaml
var defaultPlanYAML []byte

var ErrInvalidPlan = errors.New("invalid audit plan")

// Plan lists the documents to verify and the rules for the raw layout.
type Plan struct {
	Tolerance        float64            `yaml:"tolerance" json:"tolerance"`
	MetricTolerances map[string]float64 `yaml:"metric_tolerances,omitempty" json:"metric_tolerances,omitempty"`
	// RequireMetricProvenance turns metrics without provenance from notes into warnings.
	RequireMetricProvenance bool           `yaml:"require_metric_provenance,omitempty" json:"require_metric_provenance,omitempty"`
	Documents               []DocumentSpec `yaml:"documents" json:"documents"`
	Layout                  LayoutConfig   `yaml:"layout" json:"layout"`
}

// DocumentSpec describes one expected derived document.
type DocumentSpec struct {
	Name           string          `yaml:"name" json:"name"`
	Path           string          `yaml:"path" json:"path"`
	Optional       bool            `yaml:"optional,omitempty" json:"optional,omitempty"`
	RequiredBlocks []RequiredBlock `yaml:"required_blocks" json:"required_blocks"`
	Checks         []MetricCheck   `yaml:"checks,omitempty" json:"checks,omitempty"`
	Notes          []string        `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// RequiredBlock is a block that must be present. Written as a bare name in YAML it
// also requires a provenance object.
type RequiredBlock struct {
	Name       string `yaml:"name" json:"name"`
	Provenance bool   `yaml:"provenance" json:"provenance"`
}

func (r *RequiredBlock) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Name = node.Value
		r.Provenance = true
		return nil
	}
	type plain RequiredBlock
	p := plain{Provenance: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = RequiredBlock(p)
	return nil
}

// MetricCheck declares how a metric stored without its own provenance is derived
// from fields of a block. Inputs are written block.FIELD.
type MetricCheck struct {
	Metric     string             `yaml:"metric" json:"metric"`
	Derivation derived.Derivation `yaml:"derivation" json:"derivation"`
	Factor     float64            `yaml:"factor,omitempty" json:"factor,omitempty"`
	Inputs     []string           `yaml:"inputs" json:"inputs"`
}

// LayoutConfig names the canonical raw root, legacy roots and filename buckets.
type LayoutConfig struct {
	Root        string       `yaml:"root" json:"root"`
	LegacyRoots []string     `yaml:"legacy_roots" json:"legacy_roots"`
	Extensions  []string     `yaml:"extensions" json:"extensions"`
	Buckets     []BucketRule `yaml:"buckets" json:"buckets"`
}

// BucketRule assigns files whose name starts with one of Prefixes to directory Name.
// Timestamped buckets must hold <prefix>_<geo>_<timestamp>.json names only.
type BucketRule struct {
	Name        string   `yaml:"name" json:"name"`
	Prefixes    []string `yaml:"prefixes" json:"prefixes"`
	Timestamped bool     `yaml:"timestamped,omitempty" json:"timestamped,omitempty"`
}

// DefaultPlan returns the built-in plan.
func DefaultPlan() Plan {
	p, err := ParsePlan(defaultPlanYAML)
	if err != nil {
		panic(fmt.Sprintf("default audit plan: %v", err))
	}
	return p
}

// LoadPlan reads a YAML plan from path; an empty path yields DefaultPlan.
func LoadPlan(path string) (Plan, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPlan(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes and validates a YAML plan.
func ParsePlan(data []byte) (Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if p.Tolerance == 0 {
		p.Tolerance = DefaultTolerance
	}
	if len(p.Layout.Extensions) == 0 {
		p.Layout.Extensions = []string{".json", ".md"}
	}
	for i, ext := range p.Layout.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		p.Layout.Extensions[i] = ext
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Validate reports every problem in the plan at once.
func (p Plan) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidPlan}, args...)...))
	}
	if p.Tolerance < 0 || p.Tolerance >= 1 {
		bad("tolerance %g out of range", p.Tolerance)
	}
	for name, tol := range p.MetricTolerances {
		if tol < 0 || tol >= 1 {
			bad("metric %s tolerance %g out of range", name, tol)
		}
	}
	if strings.TrimSpace(p.Layout.Root) == "" {
		bad("layout.root is required")
	}
	seen := map[string]string{}
	for _, b := range p.Layout.Buckets {
		if b.Name == "" {
			bad("bucket without name")
		}
		for _, prefix := range b.Prefixes {
			if other, ok := seen[prefix]; ok {
				bad("prefix %q claimed by buckets %s and %s", prefix, other, b.Name)
			}
			seen[prefix] = b.Name
		}
	}
	for i, d := range p.Documents {
		if d.Name == "" || d.Path == "" {
			bad("documents[%d] needs name and path", i)
		}
		for _, c := range d.Checks {
			if !c.Derivation.Valid() {
				bad("%s: metric %s has unknown derivation %q", d.Name, c.Metric, c.Derivation)
			}
			for _, in := range c.Inputs {
				if _, err := parseInput(in); err != nil {
					bad("%s: metric %s: %v", d.Name, c.Metric, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}

// ToleranceFor returns the relative tolerance applied to metric.
func (p Plan) ToleranceFor(metric string) float64 {
	if tol, ok := p.MetricTolerances[metric]; ok {
		return tol
	}
	if p.Tolerance == 0 {
		return DefaultTolerance
	}
	return p.Tolerance
}

func parseInput(in string) (derived.FieldRef, error) {
	block, field, ok := strings.Cut(strings.TrimSpace(in), ".")
	if !ok || block == "" || field == "" {
		return derived.FieldRef{}, fmt.Errorf("input %q is not block.FIELD", in)
	}
	return derived.FieldRef{Block: block, Field: field}, nil
}
