package acs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/acs-tracts/internal/monitoring"
)

// DefaultProfile is the ACS5 profile fetched when none is given.
const DefaultProfile = "DP02"

// DataSource fetches the raw profile payload for one state.
type DataSource interface {
	ProfileGroup(ctx context.Context, year int, profile, state string) ([][]*string, error)
}

// Request describes one pipeline run.
type Request struct {
	Year    int
	Profile string
	// States are the state codes to fetch, in output order.
	States []string
	// StateNames maps every known state code to its name.
	StateNames map[string]string
}

// StateSummary counts the output for one state.
type StateSummary struct {
	Code    string
	Name    string
	Tracts  int
	Records int
}

// Result is the outcome of a successful run.
type Result struct {
	RunID     uuid.UUID
	Year      int
	Profile   string
	StartedAt time.Time
	Elapsed   time.Duration

	Records   []FinalRecord
	Tracts    int
	Variables int
	Melt      MeltStats
	Issues    []ClassificationIssue
	Join      JoinStats
	States    []StateSummary
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for run timing.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithFetchConcurrency sets how many states are fetched at once.
func WithFetchConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithMetrics records run outcome counters.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline fetches, reshapes, classifies, and joins ACS5 tract data.
type Pipeline struct {
	source      DataSource
	labels      LabelSource
	clock       clockwork.Clock
	concurrency int
	metrics     *monitoring.Metrics
}

// NewPipeline creates a pipeline reading from source and labeling through labels.
func NewPipeline(source DataSource, labels LabelSource, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:      source,
		labels:      labels,
		clock:       clockwork.NewRealClock(),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// Run executes every stage. It returns either a complete result or an error;
// fatal conditions never yield partial records.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	states, err := req.normalize()
	if err != nil {
		p.metrics.RunFailed("request")
		return nil, err
	}

	start := p.clock.Now()
	res := &Result{RunID: uuid.New(), Year: req.Year, Profile: req.Profile, StartedAt: start}
	log := zap.L().With(
		zap.String("run_id", res.RunID.String()),
		zap.Int("year", req.Year),
		zap.String("profile", req.Profile),
	)
	log.Info("starting census tract run", zap.Int("states", len(states)))

	responses, err := p.fetchStates(ctx, req.Year, req.Profile, states)
	if err != nil {
		p.metrics.RunFailed("fetch")
		return nil, err
	}

	wide, err := AssembleWide(ctx, responses, p.labels, req.Year)
	if err != nil {
		p.metrics.RunFailed("assemble")
		return nil, eris.Wrap(err, "acs: assemble")
	}

	geos, err := ExtractGeography(wide)
	if err != nil {
		p.metrics.RunFailed("geography")
		return nil, eris.Wrap(err, "acs: geography")
	}

	values, meltStats, err := Melt(wide)
	if err != nil {
		p.metrics.RunFailed("melt")
		return nil, eris.Wrap(err, "acs: melt")
	}

	classified, issues := Classify(values)
	records, joinStats := Join(classified, geos, req.StateNames)

	res.Records = records
	res.Tracts = len(geos)
	res.Variables = meltStats.Variables
	res.Melt = meltStats
	res.Issues = issues
	res.Join = joinStats
	res.States = summarize(states, req.StateNames, geos, records)
	res.Elapsed = p.clock.Since(start)

	p.metrics.RunCompleted(len(records), len(issues), joinStats.Dropped(),
		meltStats.Missing+meltStats.NonNumeric, res.Elapsed)

	log.Info("census tract run complete",
		zap.Int("tracts", res.Tracts),
		zap.Int("records", len(records)),
		zap.Int("excluded_malformed", len(issues)),
		zap.Int("excluded_unmatched", joinStats.Dropped()),
		zap.Duration("elapsed", res.Elapsed),
	)

	return res, nil
}

// fetchStates downloads every state concurrently and returns the responses
// in request order.
func (p *Pipeline) fetchStates(ctx context.Context, year int, profile string, states []string) ([]RawStateResponse, error) {
	out := make([]RawStateResponse, len(states))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, code := range states {
		g.Go(func() error {
			rows, err := p.source.ProfileGroup(gctx, year, profile, code)
			if err != nil {
				return eris.Wrapf(err, "acs: fetch state %s", code)
			}
			out[i] = RawStateResponse{State: code, Rows: rows}
			zap.L().Info("fetched census data for state",
				zap.String("state", code),
				zap.Int("rows", max(len(rows)-1, 0)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize validates the request and returns its state codes de-duplicated
// in their original order.
func (r Request) normalize() ([]string, error) {
	if r.Year <= 0 {
		return nil, eris.Wrapf(ErrInvalidRequest, "year %d", r.Year)
	}
	if strings.TrimSpace(r.Profile) == "" {
		return nil, eris.Wrap(ErrInvalidRequest, "empty profile")
	}
	if len(r.States) == 0 {
		return nil, eris.Wrap(ErrInvalidRequest, "no states")
	}

	seen := make(map[string]bool, len(r.States))
	out := make([]string, 0, len(r.States))
	for _, code := range r.States {
		if _, ok := r.StateNames[code]; !ok {
			return nil, eris.Wrapf(ErrUnknownState, "%q", code)
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out, nil
}

func summarize(states []string, names map[string]string, geos []GeographyRecord, records []FinalRecord) []StateSummary {
	idx := make(map[string]int, len(states))
	out := make([]StateSummary, len(states))
	for i, code := range states {
		idx[code] = i
		out[i] = StateSummary{Code: code, Name: names[code]}
	}
	for _, g := range geos {
		if i, ok := idx[g.StateCode]; ok {
			out[i].Tracts++
		}
	}
	for _, r := range records {
		if i, ok := idx[r.StateCode]; ok {
			out[i].Records++
		}
	}
	return out
}
