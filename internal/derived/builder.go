package derived

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"provenance-audit/internal/census"
	"provenance-audit/internal/rawstore"
)

var (
	ErrUnknownInput = errors.New("unknown metric input")
	ErrNoRawPath    = errors.New("provenance needs raw_path")
)

// FieldRef names a field inside a block added to the builder.
type FieldRef struct {
	Block string
	Field string
}

// Builder assembles a Document. Values enter only through AddBlock, which reads them
// out of the cached artifact, and metrics are computed from those values while the
// matching provenance is recorded in the same step.
type Builder struct {
	doc       Document
	artifacts map[string]rawstore.Artifact
	errs      []error
}

// NewBuilder starts a document.
func NewBuilder(name, area string, generatedAt time.Time) *Builder {
	return &Builder{
		doc: Document{
			Document:       name,
			GeneratedAt:    generatedAt.UTC().Format(time.RFC3339),
			GeographicArea: area,
			Blocks:         map[string]Block{},
			Metrics:        map[string]Metric{},
		},
		artifacts: map[string]rawstore.Artifact{},
	}
}

// AddBlock copies every requested variable from the artifact payload into a block.
// descriptions may be nil.
func (b *Builder) AddBlock(name string, art rawstore.Artifact, year int, descriptions map[string]string) {
	payload := []byte(art.Payload)
	if len(payload) == 0 {
		loaded, err := rawstore.Load(art.Path)
		if err != nil {
			b.errs = append(b.errs, fmt.Errorf("block %s: %w", name, err))
			return
		}
		payload = loaded
	}

	data := make(map[string]Field, len(art.Variables))
	for _, code := range art.Variables {
		v, err := census.Lookup(payload, code, art.Geography)
		if err != nil {
			b.errs = append(b.errs, fmt.Errorf("block %s field %s: %w", name, code, err))
			continue
		}
		f := Field{Description: descriptions[code], RawValue: v.Raw}
		if !v.Null {
			n := v.Num
			f.Value = &n
		}
		data[code] = f
	}

	b.doc.Blocks[name] = Block{
		Provenance: &Provenance{
			RawPath:     art.Path,
			Endpoint:    art.Endpoint,
			Geography:   art.Geography,
			RetrievedAt: art.RetrievedAt.UTC().Format(time.RFC3339),
			Variables:   append([]string(nil), art.Variables...),
			Year:        year,
			SHA256:      art.SHA256,
		},
		Data: data,
	}
	b.artifacts[name] = art
}

// AddComputedBlock records values computed from another persisted document at sourcePath.
func (b *Builder) AddComputedBlock(name, sourcePath, method string, values map[string]any) {
	b.AddSourcedBlock(name, Provenance{RawPath: sourcePath, Method: method}, values)
}

// AddSourcedBlock records values extracted from a persisted non-JSON source, such as a
// saved news release. prov.RawPath is required.
func (b *Builder) AddSourcedBlock(name string, prov Provenance, values map[string]any) {
	if prov.RawPath == "" {
		b.errs = append(b.errs, fmt.Errorf("block %s: %w", name, ErrNoRawPath))
		return
	}
	b.doc.Blocks[name] = Block{Provenance: &prov, Values: values}
}

// Derive computes metric from inputs and stores value and provenance together.
// A null input or an undefined result stores a null value.
func (b *Builder) Derive(metric string, d Derivation, inputs ...FieldRef) {
	b.derive(metric, d, 0, inputs)
}

// DeriveScaled stores inputs[0] * factor.
func (b *Builder) DeriveScaled(metric string, factor float64, input FieldRef) {
	b.derive(metric, Scaled, factor, []FieldRef{input})
}

func (b *Builder) derive(metric string, d Derivation, factor float64, inputs []FieldRef) {
	if !d.Valid() {
		b.errs = append(b.errs, fmt.Errorf("metric %s: %w: %q", metric, ErrUnknownDerivation, d))
		return
	}
	provs := make([]Provenance, 0, len(inputs))
	values := make([]float64, 0, len(inputs))
	null := false
	for _, in := range inputs {
		block, ok := b.doc.Blocks[in.Block]
		art, hasArt := b.artifacts[in.Block]
		if !ok || !hasArt {
			b.errs = append(b.errs, fmt.Errorf("metric %s: %w: block %s", metric, ErrUnknownInput, in.Block))
			return
		}
		field, ok := block.Data[in.Field]
		if !ok {
			b.errs = append(b.errs, fmt.Errorf("metric %s: %w: %s.%s", metric, ErrUnknownInput, in.Block, in.Field))
			return
		}
		provs = append(provs, Provenance{
			RawPath:     art.Path,
			FieldCode:   in.Field,
			Endpoint:    art.Endpoint,
			Geography:   art.Geography,
			RetrievedAt: art.RetrievedAt.UTC().Format(time.RFC3339),
		})
		if field.Value == nil {
			null = true
			continue
		}
		values = append(values, *field.Value)
	}

	m := Metric{Derivation: d, Provenance: provs}
	if d == Scaled {
		m.Factor = factor
	}
	m.Value = json.RawMessage("null")
	if !null {
		v, err := Compute(d, factor, values)
		switch {
		case errors.Is(err, ErrUndefined):
			m.Note = err.Error()
		case err != nil:
			b.errs = append(b.errs, fmt.Errorf("metric %s: %w", metric, err))
			return
		default:
			m.Value = encodeNumber(v)
		}
	}
	b.doc.Metrics[metric] = m
}

// Value returns the computed value of a metric already derived, if it is not null.
func (b *Builder) Value(metric string) (float64, bool) {
	m, ok := b.doc.Metrics[metric]
	if !ok {
		return 0, false
	}
	v, err := MetricValue(m)
	if err != nil || v.Null {
		return 0, false
	}
	return v.Num, true
}

// Build returns the document or every error collected while building it.
func (b *Builder) Build() (Document, error) {
	if len(b.errs) > 0 {
		return Document{}, errors.Join(b.errs...)
	}
	return b.doc, nil
}

// MetricValue decodes a stored metric value.
func MetricValue(m Metric) (census.Value, error) {
	if len(m.Value) == 0 {
		return census.Value{Null: true, Raw: "null"}, nil
	}
	var raw any
	if err := json.Unmarshal(m.Value, &raw); err != nil {
		return census.Value{}, err
	}
	if s, ok := raw.(string); ok {
		return census.Value{}, fmt.Errorf("value %q is a string", s)
	}
	return census.ParseValue(raw)
}

func encodeNumber(v float64) json.RawMessage {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return json.RawMessage("null")
	}
	return json.RawMessage(strconv.FormatFloat(v, 'g', -1, 64))
}

// Write stores the document as indented JSON, replacing path atomically.
func Write(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".derived-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	return os.Rename(tmpName, path)
}

// Read parses a document from path.
func Read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}
