package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"provenance-audit/internal/census"
	"provenance-audit/internal/derived"
	"provenance-audit/internal/shared/util"
)

// Verifier checks documents against the raw artifacts on disk. Relative paths in
// documents and in the plan are resolved against Root. A Verifier caches raw payloads
// and is not safe for concurrent use.
type Verifier struct {
	Root string
	Plan Plan

	raw map[string]rawEntry
}

type rawEntry struct {
	data []byte
	err  error
}

// NewVerifier returns a verifier for plan rooted at root.
func NewVerifier(root string, plan Plan) *Verifier {
	return &Verifier{Root: root, Plan: plan, raw: map[string]rawEntry{}}
}

func (v *Verifier) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(v.Root, p)
}

func (v *Verifier) exists(p string) bool {
	info, err := os.Stat(v.resolve(p))
	return err == nil && !info.IsDir()
}

func (v *Verifier) readRaw(p string) ([]byte, error) {
	if v.raw == nil {
		v.raw = map[string]rawEntry{}
	}
	if e, ok := v.raw[p]; ok {
		return e.data, e.err
	}
	data, err := os.ReadFile(v.resolve(p))
	v.raw[p] = rawEntry{data: data, err: err}
	return data, err
}

// VerifyDocument runs every check for one document. A missing file fails only this
// document; nothing else is checked for it.
func (v *Verifier) VerifyDocument(spec DocumentSpec) DocumentResult {
	res := DocumentResult{Name: spec.Name, Path: spec.Path}
	for _, n := range spec.Notes {
		res.note(n)
	}

	if !v.exists(spec.Path) {
		if spec.Optional {
			res.Exists = true
			res.note(fmt.Sprintf("%s not present; optional document skipped", spec.Path))
			return res
		}
		res.add(CheckResult{
			Name:   spec.Path + " exists",
			Status: StatusFail,
			Kind:   KindMissingInput,
			Reason: "derived document not found",
			Path:   spec.Path,
		})
		return res
	}
	res.Exists = true
	res.add(CheckResult{Name: spec.Path + " exists", Status: StatusPass, Path: spec.Path})

	doc, err := derived.Read(v.resolve(spec.Path))
	if err != nil {
		res.add(CheckResult{
			Name:   "parse " + spec.Path,
			Status: StatusFail,
			Kind:   KindSchema,
			Reason: err.Error(),
			Path:   spec.Path,
		})
		return res
	}

	required := map[string]bool{}
	for _, rb := range spec.RequiredBlocks {
		required[rb.Name] = true
		v.checkRequiredBlock(&res, doc, rb)
	}
	for _, name := range sortedKeys(doc.Blocks) {
		if !required[name] {
			if p := doc.Blocks[name].Provenance; p != nil && p.RawPath != "" {
				v.checkRawPointer(&res, name, *p)
			}
		}
		checkBlockSentinels(&res, name, doc.Blocks[name])
	}

	planned := map[string]MetricCheck{}
	for _, c := range spec.Checks {
		planned[c.Metric] = c
	}
	for _, name := range doc.MetricNames() {
		m := doc.Metrics[name]
		if len(m.Provenance) > 0 {
			res.add(v.CrossCheckMetric(name, m))
			continue
		}
		if val, err := derived.MetricValue(m); err == nil && val.Sentinel {
			if f, err := strconv.ParseFloat(val.Raw, 64); err == nil {
				res.add(sentinelStored("metric "+name, f))
				continue
			}
		}
		if c, ok := planned[name]; ok {
			res.add(v.crossCheckPlanned(doc, c, m))
			continue
		}
		if m.Note != "" {
			res.note(fmt.Sprintf("metric %s: %s", name, m.Note))
		}
		if v.Plan.RequireMetricProvenance {
			res.add(CheckResult{
				Name:   "metric " + name + " has provenance",
				Status: StatusWarn,
				Kind:   KindHygiene,
				Reason: "metric stored without provenance",
				Depth:  1,
			})
		} else {
			res.note(fmt.Sprintf("metric %s carries no provenance; not cross-checked", name))
		}
	}
	for _, c := range spec.Checks {
		if _, ok := doc.Metrics[c.Metric]; !ok {
			res.note(fmt.Sprintf("metric %s not in document; check skipped", c.Metric))
		}
	}
	return res
}

func (v *Verifier) checkRequiredBlock(res *DocumentResult, doc derived.Document, rb RequiredBlock) {
	block, ok := doc.Blocks[rb.Name]
	if !ok {
		res.add(CheckResult{
			Name:   "block " + rb.Name + " present",
			Status: StatusFail,
			Kind:   KindSchema,
			Reason: "required block missing",
		})
		return
	}
	if !rb.Provenance {
		res.add(CheckResult{Name: "block " + rb.Name + " present", Status: StatusPass})
		return
	}
	if block.Provenance == nil {
		res.add(CheckResult{
			Name:   "block " + rb.Name + " present with provenance",
			Status: StatusFail,
			Kind:   KindSchema,
			Reason: "block has no provenance object",
		})
		return
	}
	res.add(CheckResult{Name: "block " + rb.Name + " present with provenance", Status: StatusPass})
	if block.Provenance.RawPath == "" {
		res.add(CheckResult{
			Name:   "block " + rb.Name + " raw response cached",
			Status: StatusWarn,
			Kind:   KindHygiene,
			Reason: "provenance has no raw_path; raw response not cached",
			Depth:  1,
		})
		return
	}
	v.checkRawPointer(res, rb.Name, *block.Provenance)
}

// checkBlockSentinels fails coerced block values that hold a Census annotation code.
// raw_value is the verbatim API text and may legitimately carry one.
func checkBlockSentinels(res *DocumentResult, block string, b derived.Block) {
	for _, code := range sortedKeys(b.Data) {
		if f := b.Data[code].Value; f != nil && census.IsSentinel(*f) {
			res.add(sentinelStored("block "+block+" field "+code, *f))
		}
	}
	for _, key := range sortedKeys(b.Values) {
		walkSentinels(key, b.Values[key], func(path string, f float64) {
			res.add(sentinelStored("block "+block+" value "+path, f))
		})
	}
}

// walkSentinels calls hit with the dotted path of every sentinel number inside v.
func walkSentinels(path string, v any, hit func(string, float64)) {
	switch x := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(x) {
			if k != "raw_value" {
				walkSentinels(path+"."+k, x[k], hit)
			}
		}
	case []any:
		for i, item := range x {
			walkSentinels(fmt.Sprintf("%s[%d]", path, i), item, hit)
		}
	case float64:
		if census.IsSentinel(x) {
			hit(path, x)
		}
	case json.Number:
		if f, err := x.Float64(); err == nil && census.IsSentinel(f) {
			hit(path, f)
		}
	}
}

func sentinelStored(name string, code float64) CheckResult {
	return CheckResult{
		Name:   name,
		Status: StatusFail,
		Kind:   KindConsistency,
		Reason: fmt.Sprintf("sentinel stored as data: %s (%s)", census.FormatNumber(code), census.SentinelMeaning(code)),
		Actual: census.FormatNumber(code),
		Depth:  1,
	}
}

func (v *Verifier) checkRawPointer(res *DocumentResult, block string, p derived.Provenance) {
	name := "block " + block + " raw_path exists"
	if !v.exists(p.RawPath) {
		res.add(CheckResult{
			Name:   name,
			Status: StatusFail,
			Kind:   KindMissingInput,
			Reason: "raw file missing",
			Path:   p.RawPath,
			Depth:  1,
		})
		return
	}
	res.add(CheckResult{Name: name, Status: StatusPass, Path: p.RawPath, Depth: 1})
	if p.SHA256 == "" {
		return
	}
	sum, err := util.HashFile(v.resolve(p.RawPath))
	switch {
	case err != nil:
		res.add(CheckResult{
			Name: "block " + block + " raw sha256", Status: StatusFail, Kind: KindMissingInput,
			Reason: err.Error(), Path: p.RawPath, Depth: 1,
		})
	case !strings.EqualFold(sum, p.SHA256):
		res.add(CheckResult{
			Name: "block " + block + " raw sha256", Status: StatusFail, Kind: KindConsistency,
			Reason: "raw artifact changed since the document was built", Path: p.RawPath,
			Expected: p.SHA256, Actual: sum, Depth: 1,
		})
	default:
		res.add(CheckResult{Name: "block " + block + " raw sha256", Status: StatusPass, Path: p.RawPath, Depth: 1})
	}
}

// crossCheckPlanned borrows raw pointers from the blocks named in the plan check, for
// documents whose metrics were written without provenance.
func (v *Verifier) crossCheckPlanned(doc derived.Document, c MetricCheck, m derived.Metric) CheckResult {
	provs := make([]derived.Provenance, 0, len(c.Inputs))
	for _, in := range c.Inputs {
		ref, err := parseInput(in)
		if err != nil {
			return v.fail(c.Metric, KindSchema, err.Error(), "")
		}
		block, ok := doc.Blocks[ref.Block]
		if !ok || block.Provenance == nil || block.Provenance.RawPath == "" {
			return CheckResult{
				Name:   metricCheckName(c.Metric, c.Derivation, c.Inputs),
				Status: StatusWarn,
				Kind:   KindHygiene,
				Reason: fmt.Sprintf("block %s has no raw_path to check against", ref.Block),
				Depth:  1,
			}
		}
		provs = append(provs, derived.Provenance{
			RawPath:   block.Provenance.RawPath,
			FieldCode: ref.Field,
			Geography: block.Provenance.Geography,
		})
	}
	m.Derivation = c.Derivation
	m.Factor = c.Factor
	m.Provenance = provs
	return v.CrossCheckMetric(c.Metric, m)
}

// CrossCheckMetric recomputes a metric from the raw fields its provenance names and
// compares the result with the stored value. Pass-through must match exactly; other
// derivations match within the plan tolerance relative to max(1, |expected|).
func (v *Verifier) CrossCheckMetric(name string, m derived.Metric) CheckResult {
	d := m.Derivation
	if d == "" && len(m.Provenance) == 1 {
		d = derived.PassThrough
	}
	codes := make([]string, 0, len(m.Provenance))
	for _, p := range m.Provenance {
		codes = append(codes, p.FieldCode)
	}
	label := metricCheckName(name, d, codes)
	fail := func(kind Kind, reason, path string) CheckResult {
		return CheckResult{Name: label, Status: StatusFail, Kind: kind, Reason: reason, Path: path, Depth: 1}
	}

	if !d.Valid() {
		return fail(KindSchema, fmt.Sprintf("unknown derivation %q", d), "")
	}
	stored, err := derived.MetricValue(m)
	if err != nil {
		return fail(KindSchema, "stored value is not numeric: "+err.Error(), "")
	}
	if stored.Sentinel {
		return fail(KindConsistency, fmt.Sprintf("sentinel stored as data: %s (%s)", stored.Raw, census.SentinelMeaning(stored.Num)), "")
	}

	inputs := make([]float64, 0, len(m.Provenance))
	rawNull := false
	for i, p := range m.Provenance {
		if p.FieldCode == "" || p.RawPath == "" {
			return fail(KindSchema, fmt.Sprintf("provenance[%d] needs raw_path and field_code", i), p.RawPath)
		}
		payload, err := v.readRaw(p.RawPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fail(KindMissingInput, "raw file missing", p.RawPath)
			}
			return fail(KindMissingInput, err.Error(), p.RawPath)
		}
		val, err := census.Lookup(payload, p.FieldCode, p.Geography)
		if err != nil {
			return fail(KindConsistency, err.Error(), p.RawPath)
		}
		if val.Null {
			rawNull = true
			continue
		}
		inputs = append(inputs, val.Num)
	}
	path := ""
	if len(m.Provenance) > 0 {
		path = m.Provenance[0].RawPath
	}

	res := CheckResult{Name: label, Path: path, Actual: stored.String(), Depth: 1}
	if rawNull {
		res.Expected = "null"
		if stored.Null {
			res.Status = StatusPass
			res.Reason = "raw value not applicable; derived value null"
			return res
		}
		res.Status = StatusFail
		res.Kind = KindConsistency
		res.Reason = "raw value not applicable but derived value is a number"
		return res
	}

	expected, err := derived.Compute(d, m.Factor, inputs)
	switch {
	case errors.Is(err, derived.ErrUndefined):
		res.Expected = "null"
		if stored.Null {
			res.Status = StatusPass
			return res
		}
		res.Status = StatusFail
		res.Kind = KindConsistency
		res.Reason = err.Error()
		return res
	case err != nil:
		res.Status = StatusFail
		res.Kind = KindSchema
		res.Reason = err.Error()
		return res
	}
	res.Expected = census.FormatNumber(expected)
	if stored.Null {
		res.Status = StatusFail
		res.Kind = KindConsistency
		res.Reason = "derived value is null but raw inputs are present"
		return res
	}

	tol := v.Plan.ToleranceFor(name)
	if d.Exact() {
		tol = 0
	}
	if Within(stored.Num, expected, tol) {
		res.Status = StatusPass
		return res
	}
	res.Status = StatusFail
	res.Kind = KindConsistency
	if tol == 0 {
		res.Reason = "derived value differs from raw"
	} else {
		res.Reason = fmt.Sprintf("derived value outside relative tolerance %g", tol)
	}
	return res
}

func (v *Verifier) fail(metric string, kind Kind, reason, path string) CheckResult {
	return CheckResult{Name: "metric " + metric, Status: StatusFail, Kind: kind, Reason: reason, Path: path, Depth: 1}
}

// Within reports |got-want| <= tol*max(1,|want|). A zero tol demands equality.
func Within(got, want, tol float64) bool {
	if tol == 0 {
		return got == want
	}
	return math.Abs(got-want) <= tol*math.Max(1, math.Abs(want))
}

func metricCheckName(name string, d derived.Derivation, codes []string) string {
	if d == "" {
		return "metric " + name
	}
	return fmt.Sprintf("metric %s (%s of %s)", name, d, strings.Join(codes, ", "))
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func decodeJSON(data []byte) (any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
