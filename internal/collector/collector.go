package collector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"StochSentinel/internal/calculator"
	"StochSentinel/internal/model"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options configures a Collector.
type Options struct {
	Timeframe model.Timeframe
	Limit     int
	Params    calculator.StochRSIParams
	Workers   int
	// Symbols restricts the universe when non-empty.
	Symbols []string
}

// Skip records why a symbol produced no snapshot this cycle.
type Skip struct {
	Symbol string
	Reason error
}

// ScanResult is the output of one pass over the universe.
type ScanResult struct {
	Universe  int
	Snapshots []model.Snapshot
	Skipped   []Skip
}

// Collector fetches candles for every symbol and computes its StochRSI snapshot.
type Collector struct {
	Source Source
	Opts   Options
	Log    logrus.FieldLogger
}

// NewCollector creates a new Collector.
func NewCollector(src Source, opts Options, log logrus.FieldLogger) *Collector {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Collector{Source: src, Opts: opts, Log: log}
}

// Collect lists the universe and scans each symbol on a bounded worker pool.
// Only a failure to list the universe is returned; per-symbol failures become skips.
// Snapshots keep universe order regardless of completion order.
func (c *Collector) Collect(ctx context.Context) (*ScanResult, error) {
	symbols, err := c.Source.ListSymbols(ctx)
	if err != nil {
		if !errors.Is(err, ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		return nil, fmt.Errorf("list symbols from %s: %w", c.Source.Name(), err)
	}
	symbols = c.filter(symbols)

	snaps := make([]*model.Snapshot, len(symbols))
	reasons := make([]error, len(symbols))

	var g errgroup.Group
	g.SetLimit(c.Opts.Workers)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			snaps[i], reasons[i] = c.scanSymbol(ctx, sym)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	res := &ScanResult{Universe: len(symbols)}
	for i, sym := range symbols {
		if snaps[i] == nil {
			c.Log.WithFields(logrus.Fields{"symbol": sym, "reason": reasons[i]}).Debug("symbol skipped")
			res.Skipped = append(res.Skipped, Skip{Symbol: sym, Reason: reasons[i]})
			continue
		}
		res.Snapshots = append(res.Snapshots, *snaps[i])
	}
	return res, nil
}

func (c *Collector) scanSymbol(ctx context.Context, symbol string) (*model.Snapshot, error) {
	bars, err := c.Source.FetchCandles(ctx, symbol, c.Opts.Timeframe, c.Opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	k, d, err := calculator.StochRSI(model.Closes(bars), c.Opts.Params)
	if err != nil {
		return nil, err
	}
	last := bars[len(bars)-1]
	return &model.Snapshot{
		Symbol: symbol,
		K:      round2(k),
		D:      round2(d),
		Close:  last.Close,
		At:     last.Time,
	}, nil
}

func (c *Collector) filter(symbols []string) []string {
	if len(c.Opts.Symbols) == 0 {
		return symbols
	}
	allowed := make(map[string]bool, len(c.Opts.Symbols))
	for _, s := range c.Opts.Symbols {
		allowed[strings.ToUpper(s)] = true
	}
	var out []string
	for _, s := range symbols {
		if allowed[strings.ToUpper(s)] {
			out = append(out, s)
		}
	}
	return out
}

// round2 rounds the exact binary value of v to two decimals, ties to even.
func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}
