// Package derived defines analysis output documents and the only code path that writes them.
package derived

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Provenance points a value back at the raw artifact it was computed from.
type Provenance struct {
	RawPath     string   `json:"raw_path,omitempty"`
	FieldCode   string   `json:"field_code,omitempty"`
	Endpoint    string   `json:"endpoint,omitempty"`
	Geography   string   `json:"geography,omitempty"`
	RetrievedAt string   `json:"retrieved_at,omitempty"`
	Variables   []string `json:"variables,omitempty"`
	Year        int      `json:"year,omitempty"`
	SHA256      string   `json:"sha256,omitempty"`
	Method      string   `json:"method,omitempty"`
}

// UnmarshalJSON accepts the older raw_saved_to and baseline_metrics_path spellings of raw_path.
func (p *Provenance) UnmarshalJSON(data []byte) error {
	type plain Provenance
	var aux struct {
		plain
		RawSavedTo          string `json:"raw_saved_to"`
		BaselineMetricsPath string `json:"baseline_metrics_path"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Provenance(aux.plain)
	if p.RawPath == "" {
		p.RawPath = aux.RawSavedTo
	}
	if p.RawPath == "" {
		p.RawPath = aux.BaselineMetricsPath
	}
	return nil
}

// Field is one raw field copied into a block, both verbatim and coerced.
type Field struct {
	Description string   `json:"description,omitempty"`
	RawValue    any      `json:"raw_value"`
	Value       *float64 `json:"value"`
}

// Block groups fields retrieved by one API call, or values computed from another document.
type Block struct {
	Provenance *Provenance      `json:"provenance,omitempty"`
	Data       map[string]Field `json:"data,omitempty"`
	Values     map[string]any   `json:"values,omitempty"`
}

// Metric is a named output value. Value holds the JSON as stored so the audit can see
// exactly what was written, including sentinel codes and strings.
type Metric struct {
	Value      json.RawMessage `json:"value"`
	Derivation Derivation      `json:"derivation,omitempty"`
	Factor     float64         `json:"factor,omitempty"`
	Provenance []Provenance    `json:"provenance,omitempty"`
	Note       string          `json:"note,omitempty"`
}

// Document is one analysis output.
type Document struct {
	Document       string            `json:"document"`
	GeneratedAt    string            `json:"generated_at"`
	GeographicArea string            `json:"geographic_area,omitempty"`
	Blocks         map[string]Block  `json:"blocks"`
	Metrics        map[string]Metric `json:"metrics"`
}

var knownKeys = map[string]bool{
	"document":        true,
	"generated_at":    true,
	"geographic_area": true,
	"blocks":          true,
	"metrics":         true,
}

// UnmarshalJSON also reads documents written before blocks were nested: any other
// top-level object becomes a block, and a flat calculated_metrics map becomes
// metrics without provenance.
func (d *Document) UnmarshalJSON(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return err
	}

	type plain Document
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = Document(p)
	if d.Blocks == nil {
		d.Blocks = map[string]Block{}
	}
	if d.Metrics == nil {
		d.Metrics = map[string]Metric{}
	}

	keys := make([]string, 0, len(top))
	for k := range top {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		raw := top[key]
		if knownKeys[key] || !isObject(raw) {
			continue
		}
		if key == "calculated_metrics" {
			var flat map[string]json.RawMessage
			if err := json.Unmarshal(raw, &flat); err != nil {
				return fmt.Errorf("calculated_metrics: %w", err)
			}
			for name, v := range flat {
				if _, exists := d.Metrics[name]; !exists {
					d.Metrics[name] = Metric{Value: v}
				}
			}
			continue
		}
		if _, exists := d.Blocks[key]; exists {
			continue
		}
		var b Block
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("block %s: %w", key, err)
		}
		if b.Provenance == nil && b.Data == nil {
			// Legacy blocks hold fields at the top level.
			var fields map[string]Field
			if err := json.Unmarshal(raw, &fields); err == nil && len(fields) > 0 {
				b.Data = fields
			}
		}
		if b.Values == nil && b.Data == nil {
			var loose map[string]any
			if err := json.Unmarshal(raw, &loose); err == nil {
				delete(loose, "provenance")
				if len(loose) > 0 {
					b.Values = loose
				}
			}
		}
		d.Blocks[key] = b
	}
	d.attachSiblingProvenance()
	return nil
}

// attachSiblingProvenance moves a legacy "<stem>_provenance" object onto the one
// block named <stem> or <stem>_*, when that block has no provenance of its own.
func (d *Document) attachSiblingProvenance() {
	for _, key := range sortedBlockNames(d.Blocks) {
		stem, ok := strings.CutSuffix(key, "_provenance")
		if !ok || stem == "" {
			continue
		}
		sibling := d.Blocks[key]
		if sibling.Provenance != nil || sibling.Data != nil || len(sibling.Values) == 0 {
			continue
		}
		target := ""
		for name := range d.Blocks {
			if strings.HasSuffix(name, "_provenance") {
				continue
			}
			if name != stem && !strings.HasPrefix(name, stem+"_") {
				continue
			}
			if target != "" {
				target = ""
				break
			}
			target = name
		}
		if target == "" || d.Blocks[target].Provenance != nil {
			continue
		}
		raw, err := json.Marshal(sibling.Values)
		if err != nil {
			continue
		}
		var prov Provenance
		if err := json.Unmarshal(raw, &prov); err != nil {
			continue
		}
		b := d.Blocks[target]
		b.Provenance = &prov
		d.Blocks[target] = b
		delete(d.Blocks, key)
	}
}

func sortedBlockNames(blocks map[string]Block) []string {
	out := make([]string, 0, len(blocks))
	for k := range blocks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// MetricNames returns metric names sorted.
func (d Document) MetricNames() []string {
	out := make([]string, 0, len(d.Metrics))
	for k := range d.Metrics {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
