// Package collect fetches Census responses, caches them verbatim and builds the
// derived documents from the cached payloads.
package collect

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"provenance-audit/internal/census"
	"provenance-audit/internal/derived"
	"provenance-audit/internal/rawstore"
	"provenance-audit/internal/shared/metrics"
	"provenance-audit/internal/shared/telemetry"
)

const (
	DefaultGeography    = "zip code tabulation area:21076"
	DefaultArea         = "ZIP 21076 (Hanover, MD)"
	DefaultBaselinePath = "data/hanover_real_data.json"
	DefaultDetailedPath = "data/real_employment_income.json"
	DefaultRawRoot      = "data/raw"
	DecennialYear       = 2020

	censusBucket = "census"
)

var ErrNoFetcher = errors.New("collector needs a census fetcher")

// Options select what to collect. Paths are relative to the collector's DataRoot.
type Options struct {
	Year         int
	Geography    string
	Area         string
	BaselinePath string
	DetailedPath string
}

func (o Options) withDefaults() Options {
	if o.Year == 0 {
		o.Year = 2023
	}
	if o.Geography == "" {
		o.Geography = DefaultGeography
	}
	if o.Area == "" {
		o.Area = DefaultArea
	}
	if o.BaselinePath == "" {
		o.BaselinePath = DefaultBaselinePath
	}
	if o.DetailedPath == "" {
		o.DetailedPath = DefaultDetailedPath
	}
	return o
}

// Result holds the written documents and every artifact cached on the way.
type Result struct {
	Baseline  derived.Document
	Detailed  derived.Document
	Artifacts []rawstore.Artifact
}

// Collector runs the collection. Raw is rooted at the canonical raw directory under
// DataRoot.
type Collector struct {
	Fetcher  census.Fetcher
	Raw      *rawstore.Store
	DataRoot string
	Now      func() time.Time
}

// New wires a collector whose raw store lives at DataRoot/data/raw.
func New(f census.Fetcher, dataRoot string) *Collector {
	return &Collector{
		Fetcher:  f,
		Raw:      rawstore.New(filepath.Join(dataRoot, filepath.FromSlash(DefaultRawRoot))),
		DataRoot: dataRoot,
		Now:      time.Now,
	}
}

type fetchSpec struct {
	prefix  string
	year    int
	dataset string
	vars    []census.Variable
}

// Run fetches every response, saves each one before it is read, and writes the
// baseline and detailed documents.
func (c *Collector) Run(ctx context.Context, opts Options) (Result, error) {
	if c.Fetcher == nil {
		return Result{}, ErrNoFetcher
	}
	opts = opts.withDefaults()
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	year := strconv.Itoa(opts.Year)
	specs := map[string]fetchSpec{
		"acs5":       {prefix: "acs5_" + year, year: opts.Year, dataset: "acs/acs5", vars: census.ACSBaseline},
		"decennial":  {prefix: "decennial_" + strconv.Itoa(DecennialYear), year: DecennialYear, dataset: "dec/dhc", vars: census.DecennialPL},
		"income":     {prefix: "acs5_" + year + "_income", year: opts.Year, dataset: "acs/acs5", vars: census.IncomeDistribution()},
		"occupation": {prefix: "acs5_" + year + "_occupation", year: opts.Year, dataset: "acs/acs5", vars: census.EmploymentByOccupation},
	}

	var res Result
	arts := map[string]rawstore.Artifact{}
	for _, key := range []string{"acs5", "decennial", "income", "occupation"} {
		art, err := c.fetchAndSave(ctx, specs[key], opts.Geography)
		if err != nil {
			return res, err
		}
		arts[key] = art
		res.Artifacts = append(res.Artifacts, art)
	}

	generated := now()
	baseline, err := c.buildBaseline(opts, arts, generated)
	if err != nil {
		return res, fmt.Errorf("baseline: %w", err)
	}
	res.Baseline = baseline
	if err := derived.Write(c.resolve(opts.BaselinePath), baseline); err != nil {
		return res, fmt.Errorf("write baseline: %w", err)
	}

	detailed, err := c.buildDetailed(opts, arts, baseline, generated)
	if err != nil {
		return res, fmt.Errorf("detailed: %w", err)
	}
	res.Detailed = detailed
	if err := derived.Write(c.resolve(opts.DetailedPath), detailed); err != nil {
		return res, fmt.Errorf("write detailed: %w", err)
	}

	telemetry.Info("collect.complete", map[string]any{
		"year":      opts.Year,
		"geography": opts.Geography,
		"artifacts": len(res.Artifacts),
		"baseline":  opts.BaselinePath,
		"detailed":  opts.DetailedPath,
	})
	return res, nil
}

func (c *Collector) fetchAndSave(ctx context.Context, spec fetchSpec, geo string) (rawstore.Artifact, error) {
	resp, err := c.Fetcher.Fetch(ctx, census.Request{
		Year:      spec.year,
		Dataset:   spec.dataset,
		Variables: census.Codes(spec.vars),
		Geography: geo,
	})
	if err != nil {
		return rawstore.Artifact{}, fmt.Errorf("fetch %s: %w", spec.prefix, err)
	}
	art, err := c.Raw.Save(ctx, rawstore.SaveInput{
		Bucket:      censusBucket,
		Prefix:      spec.prefix,
		Endpoint:    resp.Endpoint,
		Variables:   resp.Variables,
		Geography:   resp.Geography,
		RetrievedAt: resp.RetrievedAt,
		Payload:     resp.Body,
	})
	if err != nil {
		return rawstore.Artifact{}, fmt.Errorf("cache %s: %w", spec.prefix, err)
	}
	metrics.IncRawArtifactsSaved(1)
	// Documents point at artifacts relative to the data root so they survive a move.
	if rel, err := filepath.Rel(c.DataRoot, art.Path); err == nil {
		art.Path = filepath.ToSlash(rel)
	}
	telemetry.Info("collect.raw_saved", map[string]any{"path": art.Path, "endpoint": art.Endpoint})
	return art, nil
}

func (c *Collector) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataRoot, filepath.FromSlash(p))
}

func (c *Collector) buildBaseline(opts Options, arts map[string]rawstore.Artifact, at time.Time) (derived.Document, error) {
	b := derived.NewBuilder("baseline", opts.Area, at)
	b.AddBlock("raw_census_acs5", arts["acs5"], opts.Year, census.Describe(census.ACSBaseline))
	b.AddBlock("raw_census_decennial", arts["decennial"], DecennialYear, census.Describe(census.DecennialPL))

	acs := func(code string) derived.FieldRef { return derived.FieldRef{Block: "raw_census_acs5", Field: code} }
	dec := derived.FieldRef{Block: "raw_census_decennial", Field: census.DecennialPopulation}

	b.Derive(fmt.Sprintf("population_%d", opts.Year), derived.PassThrough, acs(census.TotalPopulation))
	b.Derive(fmt.Sprintf("population_%d", DecennialYear), derived.PassThrough, dec)
	b.Derive("population_change_percent", derived.PercentChange, acs(census.TotalPopulation), dec)
	b.Derive("median_household_income", derived.PassThrough, acs(census.MedianHouseholdIncome))
	b.Derive("median_home_value", derived.PassThrough, acs(census.MedianHomeValue))
	b.Derive("median_gross_rent", derived.PassThrough, acs(census.MedianGrossRent))
	b.Derive("total_housing_units", derived.PassThrough, acs(census.TotalHousingUnits))
	b.Derive("price_to_income_ratio", derived.Ratio, acs(census.MedianHomeValue), acs(census.MedianHouseholdIncome))
	b.Derive("vacancy_rate", derived.VacancyRate, acs(census.TotalHousingUnits), acs(census.OwnerOccupied), acs(census.RenterOccupied))
	b.Derive("owner_occupancy_rate", derived.SharePercent, acs(census.OwnerOccupied), acs(census.TotalHousingUnits))
	b.Derive("public_transit_share", derived.Percent, acs(census.PublicTransit), acs(census.TotalWorkers))
	b.Derive("work_from_home_share", derived.Percent, acs(census.WorkedFromHome), acs(census.TotalWorkers))
	return b.Build()
}

func (c *Collector) buildDetailed(opts Options, arts map[string]rawstore.Artifact, baseline derived.Document, at time.Time) (derived.Document, error) {
	b := derived.NewBuilder("detailed", opts.Area, at)
	b.AddBlock("income_distribution", arts["income"], opts.Year, census.Describe(census.IncomeDistribution()))
	b.AddBlock("employment_by_industry", arts["occupation"], opts.Year, census.Describe(census.EmploymentByOccupation))

	occ := func(code string) derived.FieldRef { return derived.FieldRef{Block: "employment_by_industry", Field: code} }
	b.Derive("total_employed", derived.PassThrough, occ(census.TotalEmployed))
	for _, v := range census.EmploymentByOccupation[1:] {
		b.Derive("share_"+v.Code, derived.SharePercent, occ(v.Code), occ(census.TotalEmployed))
	}

	doc, err := b.Build()
	if err != nil {
		return derived.Document{}, err
	}
	values := affordabilityValues(doc, baseline)
	b.AddComputedBlock("affordability_analysis", opts.BaselinePath, derived.AffordabilityMethod, values)
	return b.Build()
}

// affordabilityValues applies the 30% rule to the income distribution using the
// baseline's housing costs. A distribution that cannot be evaluated is recorded as a
// note instead of numbers.
func affordabilityValues(detailed, baseline derived.Document) map[string]any {
	income := detailed.Blocks["income_distribution"]
	total := income.Data[census.TotalHouseholds].Value
	if total == nil {
		return map[string]any{"note": "total households not available"}
	}
	households := make(map[string]float64, len(census.IncomeBrackets))
	for _, br := range census.IncomeBrackets {
		if v := income.Data[br.Code].Value; v != nil {
			households[br.Code] = *v
		}
	}
	aff, err := derived.ComputeAffordability(metricValue(baseline, "median_home_value"), metricValue(baseline, "median_gross_rent"), *total, households)
	if err != nil {
		telemetry.Warn("collect.affordability_skipped", map[string]any{"error": err})
		return map[string]any{"note": err.Error()}
	}
	return aff.Map()
}

func metricValue(doc derived.Document, name string) *float64 {
	m, ok := doc.Metrics[name]
	if !ok {
		return nil
	}
	v, err := derived.MetricValue(m)
	if err != nil || v.Null {
		return nil
	}
	n := v.Num
	return &n
}
