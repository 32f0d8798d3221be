// Package pipeline wires the batch stages together:
// load -> lookups -> join -> finalize -> derive -> write.
package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/filflo-cli/internal/derive"
	"github.com/KaramelBytes/filflo-cli/internal/enrich"
	"github.com/KaramelBytes/filflo-cli/internal/logging"
	"github.com/KaramelBytes/filflo-cli/internal/lookup"
	"github.com/KaramelBytes/filflo-cli/internal/schema"
	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/KaramelBytes/filflo-cli/internal/telemetry"
	"github.com/KaramelBytes/filflo-cli/internal/utils"
)

// Sources names the four input files.
type Sources struct {
	Orders    string
	Customers string
	Products  string
	RateCards string
}

// Inputs holds the loaded source tables.
type Inputs struct {
	Orders    *table.Table
	Customers *table.Table
	Products  *table.Table
	RateCards *table.Table
}

// Pipeline carries run-wide settings. The zero value runs permissive lookups
// against the wall clock.
type Pipeline struct {
	Strict bool
	AsOf   time.Time
	NewID  func() string

	Logger    *zap.Logger
	Telemetry *telemetry.Registry
}

// BuildResult is the finalized enriched table and what each stage saw.
type BuildResult struct {
	Enriched *table.Table
	Lookups  map[string]lookup.Stats
	Join     enrich.Stats
	Missing  []string
}

// Report is the outcome of a full run.
type Report struct {
	Build    *BuildResult
	Enhanced *table.Table
	Derive   derive.Stats
}

func (p *Pipeline) now() time.Time {
	if p.AsOf.IsZero() {
		return time.Now()
	}
	return p.AsOf
}

// LoadSources reads every source. Any missing or unreadable file aborts.
func (p *Pipeline) LoadSources(src Sources) (*Inputs, error) {
	start := time.Now()
	log := logging.OrNop(p.Logger)
	in := &Inputs{}
	for _, s := range []struct {
		name string
		path string
		dst  **table.Table
	}{
		{"orders", src.Orders, &in.Orders},
		{"customers", src.Customers, &in.Customers},
		{"products", src.Products, &in.Products},
		{"rate_cards", src.RateCards, &in.RateCards},
	} {
		if s.path == "" {
			return nil, fmt.Errorf("load %s: no path configured", s.name)
		}
		t, err := table.Load(s.path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", s.name, err)
		}
		*s.dst = t
		p.Telemetry.SetSourceRows(s.name, t.Len())
		log.Info("source loaded", zap.String("source", s.name), zap.String("path", s.path),
			zap.Int("rows", t.Len()), zap.Int("columns", len(t.Header)))
	}
	p.Telemetry.ObserveStage("load", start)
	return in, nil
}

// Build constructs the lookups, joins the orders and finalizes the schema.
func (p *Pipeline) Build(in *Inputs) (*BuildResult, error) {
	start := time.Now()
	log := logging.OrNop(p.Logger)
	opt := lookup.Options{Strict: p.Strict}
	res := &BuildResult{Lookups: map[string]lookup.Stats{}}

	customers, st, err := lookup.BuildCustomers(in.Customers, opt)
	if err != nil {
		return nil, fmt.Errorf("customer lookup: %w", err)
	}
	res.Lookups["customer"] = st
	products, st, err := lookup.BuildProducts(in.Products, opt)
	if err != nil {
		return nil, fmt.Errorf("product lookup: %w", err)
	}
	res.Lookups["product"] = st
	rates, st, err := lookup.BuildRates(in.RateCards, opt)
	if err != nil {
		return nil, fmt.Errorf("rate lookup: %w", err)
	}
	res.Lookups["rate"] = st

	for name, s := range res.Lookups {
		p.Telemetry.AddDuplicates(name, s.Duplicates)
		if s.Duplicates > 0 {
			log.Warn("duplicate lookup keys overwritten", zap.String("lookup", name), zap.Int("duplicates", s.Duplicates))
		}
	}
	p.Telemetry.ObserveStage("lookup", start)

	eng := &enrich.Engine{
		Customers: customers,
		Products:  products,
		Rates:     rates,
		Logger:    p.Logger,
		Telemetry: p.Telemetry,
	}
	joined, js := eng.Enrich(in.Orders)
	res.Join = js

	fin := schema.Finalize(joined, enrich.CanonicalColumns, p.now())
	res.Enriched = fin.Table
	res.Missing = fin.Missing
	if len(fin.Missing) > 0 {
		log.Info("optional columns absent from output", zap.Strings("columns", fin.Missing))
	}
	return res, nil
}

// Enhance derives the metrics table from a finalized enriched table. orders
// supplies Order Type by Order ID and may be nil.
func (p *Pipeline) Enhance(enriched, orders *table.Table) (*table.Table, derive.Stats, error) {
	eng := &derive.Engine{
		AsOf:       p.now(),
		NewID:      p.NewID,
		OrderTypes: derive.OrderTypesFrom(orders),
		Logger:     p.Logger,
		Telemetry:  p.Telemetry,
	}
	return eng.Derive(enriched)
}

// Outputs names the artifacts Run writes. An empty path skips that artifact.
type Outputs struct {
	Enriched string
	Enhanced string
}

// Run executes every stage in memory and writes the artifacts only after all
// of them succeeded.
func (p *Pipeline) Run(src Sources, out Outputs) (*Report, error) {
	in, err := p.LoadSources(src)
	if err != nil {
		return nil, err
	}
	b, err := p.Build(in)
	if err != nil {
		return nil, err
	}
	enhanced, ds, err := p.Enhance(b.Enriched, in.Orders)
	if err != nil {
		return nil, err
	}
	if err := p.writeAll([]artifact{
		{"enriched", out.Enriched, b.Enriched},
		{"enhanced", out.Enhanced, enhanced},
	}); err != nil {
		return nil, err
	}
	return &Report{Build: b, Enhanced: enhanced, Derive: ds}, nil
}

// Write serializes t as CSV and replaces path atomically.
func (p *Pipeline) Write(name, path string, t *table.Table) error {
	return p.writeAll([]artifact{{name, path, t}})
}

type artifact struct {
	name  string
	path  string
	table *table.Table
}

// writeAll stages every artifact with a path before renaming any of them, so
// an encode or write failure leaves the previous outputs untouched.
func (p *Pipeline) writeAll(arts []artifact) error {
	start := time.Now()
	var staged []*utils.StagedFile
	var written []artifact
	discard := func() {
		for _, s := range staged {
			s.Discard()
		}
	}
	for _, a := range arts {
		if a.path == "" {
			continue
		}
		b, err := a.table.CSV()
		if err != nil {
			discard()
			return fmt.Errorf("encode %s: %w", a.name, err)
		}
		sf, err := utils.StageFile(a.path, b)
		if err != nil {
			discard()
			return fmt.Errorf("write %s: %w", a.name, err)
		}
		staged = append(staged, sf)
		written = append(written, a)
	}
	if err := utils.CommitAll(staged); err != nil {
		return err
	}

	log := logging.OrNop(p.Logger)
	for _, a := range written {
		p.Telemetry.SetRowsWritten(a.name, a.table.Len())
		log.Info("artifact written", zap.String("artifact", a.name),
			zap.String("path", a.path), zap.Int("rows", a.table.Len()))
	}
	p.Telemetry.ObserveStage("write", start)
	return nil
}
