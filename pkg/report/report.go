// Package report computes per-generator operating statistics from the fuel
// ledger: runtime, fuel burned, fuel received and what that fuel cost at the
// weighted average purchase rate.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"p9e.in/genfuel/models"
	"p9e.in/genfuel/pkg/store"
	"p9e.in/genfuel/utils"
)

// Source is the ledger read surface the builder needs.
type Source interface {
	ListMainEntries(ctx context.Context, q store.LedgerQuery) ([]models.MainFuelEntry, error)
	ListTransfers(ctx context.Context, q store.LedgerQuery) ([]models.GeneratorFuelTransfer, error)
	ListRunLogs(ctx context.Context, q store.LedgerQuery) ([]models.RunLog, error)
}

// GeneratorStats is one generator's line in the report. Runtimes are hours.
type GeneratorStats struct {
	GeneratorID       uuid.UUID `json:"generatorId"`
	Name              string    `json:"name"`
	RunCount          int       `json:"runCount"`
	TotalRuntimeHours float64   `json:"totalRuntimeHours"`
	TotalFuelConsumed float64   `json:"totalFuelConsumed"`
	TotalFuelReceived float64   `json:"totalFuelReceived"`
	TotalCost         float64   `json:"totalCost"`
	AverageEfficiency float64   `json:"averageEfficiency"`
	CostPerHour       float64   `json:"costPerHour"`

	RuntimeThisMonth      float64 `json:"runtimeThisMonth"`
	RuntimeThisYear       float64 `json:"runtimeThisYear"`
	RuntimeTotal          float64 `json:"runtimeTotal"`
	FuelConsumedThisMonth float64 `json:"fuelConsumedThisMonth"`
	FuelConsumedThisYear  float64 `json:"fuelConsumedThisYear"`
	FuelConsumedTotal     float64 `json:"fuelConsumedTotal"`
	CostThisMonth         float64 `json:"costThisMonth"`
	CostThisYear          float64 `json:"costThisYear"`
	CostTotal             float64 `json:"costTotal"`
}

// Summary aggregates every generator in the report.
type Summary struct {
	GeneratorCount      int     `json:"generatorCount"`
	TotalRuntimeHours   float64 `json:"totalRuntimeHours"`
	TotalFuelConsumed   float64 `json:"totalFuelConsumed"`
	TotalFuelReceived   float64 `json:"totalFuelReceived"`
	TotalCost           float64 `json:"totalCost"`
	AverageEfficiency   float64 `json:"averageEfficiency"`
	WeightedAverageRate float64 `json:"weightedAverageRate"`
}

// Period echoes the requested window; both bounds are nil for all history.
type Period struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

type Report struct {
	Generators []GeneratorStats `json:"generators"`
	Overall    Summary          `json:"overall"`
	Period     Period           `json:"period"`
}

// bucket holds one {month, year, total} triple in unrounded units.
type bucket struct {
	month, year, total float64
}

func (b *bucket) add(v float64, inMonth, inYear bool) {
	b.total += v
	if inMonth {
		b.month += v
	}
	if inYear {
		b.year += v
	}
}

type accumulator struct {
	id       uuid.UUID
	name     string
	runs     int
	minutes  bucket
	fuel     bucket
	cost     bucket
	received float64
}

// Builder computes reports. It never writes.
type Builder struct {
	src Source
	loc *time.Location
	now func() time.Time
}

// NewBuilder returns a builder whose month and year boundaries are taken in
// loc. A nil loc means time.Local.
func NewBuilder(src Source, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{src: src, loc: loc, now: time.Now}
}

// WithClock replaces the builder's notion of now.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build reads the ledger inside rng (all history when nil) and computes the
// report. Any failed read fails the whole build.
func (b *Builder) Build(ctx context.Context, rng *utils.DateRange) (*Report, error) {
	var (
		entries   []models.MainFuelEntry
		runLogs   []models.RunLog
		transfers []models.GeneratorFuelTransfer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = b.src.ListMainEntries(gctx, store.LedgerQuery{Range: rng, PositiveOnly: true})
		return err
	})
	g.Go(func() error {
		var err error
		runLogs, err = b.src.ListRunLogs(gctx, store.LedgerQuery{Range: rng})
		return err
	})
	g.Go(func() error {
		var err error
		transfers, err = b.src.ListTransfers(gctx, store.LedgerQuery{Range: rng})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build generator report: %w", err)
	}

	rate := WeightedAverageRate(entries)

	now := b.now().In(b.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, b.loc)
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, b.loc)
	within := func(t, from time.Time) bool {
		return !t.Before(from) && !t.After(now)
	}

	accs := map[uuid.UUID]*accumulator{}
	get := func(id uuid.UUID, gen *models.Generator) *accumulator {
		a, ok := accs[id]
		if !ok {
			a = &accumulator{id: id, name: "Unknown"}
			accs[id] = a
		}
		if gen != nil && gen.Name != "" {
			a.name = gen.Name
		}
		return a
	}

	for _, l := range runLogs {
		a := get(l.GeneratorID, l.Generator)
		inMonth := within(l.CreatedAt, monthStart)
		inYear := within(l.CreatedAt, yearStart)
		a.runs++
		a.minutes.add(float64(l.Duration), inMonth, inYear)
		a.fuel.add(l.FuelConsumed, inMonth, inYear)
		a.cost.add(l.FuelConsumed*rate, inMonth, inYear)
	}
	for _, t := range transfers {
		a := get(t.ToGeneratorID, t.ToGenerator)
		a.received += t.Quantity
	}

	rep := &Report{Generators: make([]GeneratorStats, 0, len(accs))}
	if rng != nil {
		start, end := rng.Start, rng.End
		rep.Period = Period{Start: &start, End: &end}
	}
	for _, a := range accs {
		rep.Generators = append(rep.Generators, a.stats())
	}
	sort.Slice(rep.Generators, func(i, j int) bool {
		gi, gj := rep.Generators[i], rep.Generators[j]
		if gi.Name != gj.Name {
			return gi.Name < gj.Name
		}
		return gi.GeneratorID.String() < gj.GeneratorID.String()
	})
	rep.Overall = summarize(rep.Generators, rate)
	return rep, nil
}

// WeightedAverageRate is Σamount / Σquantity over entries with a positive
// quantity, or 0 when there are none.
func WeightedAverageRate(entries []models.MainFuelEntry) float64 {
	var qty, amount float64
	for _, e := range entries {
		if e.Quantity <= 0 {
			continue
		}
		qty += e.Quantity
		amount += e.Amount
	}
	if qty == 0 {
		return 0
	}
	return amount / qty
}

func (a *accumulator) stats() GeneratorStats {
	hours := a.minutes.total / 60
	s := GeneratorStats{
		GeneratorID:       a.id,
		Name:              a.name,
		RunCount:          a.runs,
		TotalRuntimeHours: utils.Round2(hours),
		TotalFuelConsumed: utils.Round2(a.fuel.total),
		TotalFuelReceived: utils.Round2(a.received),
		TotalCost:         utils.Round2(a.cost.total),

		RuntimeThisMonth:      utils.Round2(a.minutes.month / 60),
		RuntimeThisYear:       utils.Round2(a.minutes.year / 60),
		RuntimeTotal:          utils.Round2(hours),
		FuelConsumedThisMonth: utils.Round2(a.fuel.month),
		FuelConsumedThisYear:  utils.Round2(a.fuel.year),
		FuelConsumedTotal:     utils.Round2(a.fuel.total),
		CostThisMonth:         utils.Round2(a.cost.month),
		CostThisYear:          utils.Round2(a.cost.year),
		CostTotal:             utils.Round2(a.cost.total),
	}
	if hours > 0 {
		s.AverageEfficiency = utils.Round2(a.fuel.total / hours)
		s.CostPerHour = utils.Round2(a.cost.total / hours)
	}
	return s
}

func summarize(gens []GeneratorStats, rate float64) Summary {
	sum := Summary{GeneratorCount: len(gens), WeightedAverageRate: utils.Round2(rate)}
	var eff float64
	for _, g := range gens {
		sum.TotalRuntimeHours += g.TotalRuntimeHours
		sum.TotalFuelConsumed += g.TotalFuelConsumed
		sum.TotalFuelReceived += g.TotalFuelReceived
		sum.TotalCost += g.TotalCost
		eff += g.AverageEfficiency
	}
	sum.TotalRuntimeHours = utils.Round2(sum.TotalRuntimeHours)
	sum.TotalFuelConsumed = utils.Round2(sum.TotalFuelConsumed)
	sum.TotalFuelReceived = utils.Round2(sum.TotalFuelReceived)
	sum.TotalCost = utils.Round2(sum.TotalCost)
	if len(gens) > 0 {
		sum.AverageEfficiency = utils.Round2(eff / float64(len(gens)))
	}
	return sum
}
