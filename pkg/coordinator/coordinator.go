// Package coordinator runs the periodic poll-and-publish engine. A
// single ticker drives poll cycles; within a cycle every due source is
// fetched concurrently, each fetch bounded by a timeout, and the cycle
// waits for all fetches before change-gating and publishing so
// subscribers see a consistent snapshot. One source's failure never
// aborts or delays the others; the fixed period is the retry interval.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/bus"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/collectors"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
)

// Options configure a Coordinator. Zero-value fields get defaults.
type Options struct {
	// PollInterval is the period between poll cycles. Default 15s.
	PollInterval time.Duration

	// FetchTimeout bounds each source fetch within a cycle. A timed-out
	// fetch is treated exactly like a fetch error. Default 10s.
	FetchTimeout time.Duration

	// Logger used for cycle diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 15 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Coordinator owns the collector registry and the readings map. The
// readings map has a single writer (the coordinator's own cycle);
// readers get deep copies.
type Coordinator struct {
	registry *collectors.Registry
	gate     *Gate
	bus      *bus.Bus
	opts     Options
	log      *slog.Logger

	mu          sync.RWMutex
	readings    map[string]metrics.Reading
	lastAttempt map[string]time.Time
}

// New creates a Coordinator polling the given registry and publishing
// admitted readings on b.
func New(registry *collectors.Registry, b *bus.Bus, opts Options) *Coordinator {
	opts.setDefaults()
	return &Coordinator{
		registry:    registry,
		gate:        NewGate(),
		bus:         b,
		opts:        opts,
		log:         opts.Logger,
		readings:    make(map[string]metrics.Reading),
		lastAttempt: make(map[string]time.Time),
	}
}

// Registry exposes the collector registry for registration and status
// inspection.
func (c *Coordinator) Registry() *collectors.Registry { return c.registry }

// Deregister removes a source: its collector, its reading, and its gate
// state. Subsequent cycles no longer poll it.
func (c *Coordinator) Deregister(sourceID string) {
	c.registry.Deregister(sourceID)
	c.gate.Forget(sourceID)

	c.mu.Lock()
	delete(c.readings, sourceID)
	delete(c.lastAttempt, sourceID)
	c.mu.Unlock()
}

// Seed installs prior readings (e.g. from a persisted snapshot) as
// stale, degraded data. Seeded readings are recorded in the gate but
// not republished; the next successful poll always publishes because
// the success flag flips.
func (c *Coordinator) Seed(prior []metrics.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range prior {
		if _, ok := c.registry.Get(r.SourceID); !ok {
			continue
		}
		r.LastUpdateSuccess = false
		r.State = metrics.StateDegraded
		c.readings[r.SourceID] = r
		c.gate.Seed(r)
	}
}

// Snapshot returns a copy of all current readings, sorted iteration
// being the caller's concern. The copy is consistent: it never observes
// a half-applied cycle.
func (c *Coordinator) Snapshot() map[string]metrics.Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]metrics.Reading, len(c.readings))
	for id, r := range c.readings {
		out[id] = r
	}
	return out
}

// Reading returns the current reading for one source.
func (c *Coordinator) Reading(sourceID string) (metrics.Reading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.readings[sourceID]
	return r, ok
}

// Run polls until ctx is cancelled. The first cycle runs immediately,
// not after the first tick. In-flight fetches are abandoned on
// cancellation and their results are never applied.
func (c *Coordinator) Run(ctx context.Context) error {
	c.PollCycle(ctx)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.PollCycle(ctx)
		}
	}
}

// fetchResult carries one source's outcome from its fetch goroutine to
// the apply step.
type fetchResult struct {
	sourceID string
	value    metrics.Value
	err      error
	latency  time.Duration
}

// PollCycle runs one full cycle: fetch every due source concurrently,
// wait for all, then apply and publish in source-ID order. If ctx is
// cancelled before the apply step the whole cycle is discarded.
func (c *Coordinator) PollCycle(ctx context.Context) {
	now := time.Now()
	due := c.dueSources(now)
	if len(due) == 0 {
		return
	}

	type task struct {
		id  string
		col collectors.Collector
	}
	tasks := make([]task, 0, len(due))
	for _, id := range due {
		col, ok := c.registry.Get(id)
		if !ok {
			// Deregistered since dueSources; a removed source must not
			// reappear in the readings map.
			continue
		}
		tasks = append(tasks, task{id: id, col: col})
	}

	results := make([]fetchResult, len(tasks))
	var wg sync.WaitGroup
	for i, tk := range tasks {
		wg.Add(1)
		go func(i int, tk task) {
			defer wg.Done()
			results[i] = c.fetch(ctx, tk.id, tk.col)
		}(i, tk)
	}
	wg.Wait()

	// An abandoned cycle must not half-mutate the registry.
	if ctx.Err() != nil {
		return
	}

	c.applyAll(results, now)
}

// PollOnce polls a single source immediately and applies the result.
// Fetch failures are absorbed into the stored reading and never
// returned; only an unknown source ID errors.
func (c *Coordinator) PollOnce(ctx context.Context, sourceID string) (metrics.Reading, error) {
	col, ok := c.registry.Get(sourceID)
	if !ok {
		return metrics.Reading{}, fmt.Errorf("unknown source %q", sourceID)
	}

	res := c.fetch(ctx, sourceID, col)
	if ctx.Err() != nil {
		return metrics.Reading{}, ctx.Err()
	}
	applied := c.applyAll([]fetchResult{res}, time.Now())
	if len(applied) == 0 {
		return metrics.Reading{}, fmt.Errorf("source %q deregistered during poll", sourceID)
	}
	return applied[0], nil
}

// dueSources returns the sources whose own interval has elapsed,
// recording the attempt time.
func (c *Coordinator) dueSources(now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []string
	for _, id := range c.registry.List() {
		col, ok := c.registry.Get(id)
		if !ok {
			continue
		}
		last, polled := c.lastAttempt[id]
		if polled && col.Interval() > c.opts.PollInterval && now.Sub(last) < col.Interval() {
			continue
		}
		c.lastAttempt[id] = now
		due = append(due, id)
	}
	return due
}

// fetch runs one collector with a hard deadline. Collectors are expected
// to honor the context, but some provider calls cannot be interrupted, so
// the deadline is enforced here: a fetch that overruns it is abandoned
// and degraded like any other fetch error, and its late result is
// discarded rather than applied.
func (c *Coordinator) fetch(ctx context.Context, sourceID string, col collectors.Collector) fetchResult {
	fctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()

	type outcome struct {
		value metrics.Value
		err   error
	}
	// Buffered so an abandoned collector can still finish and exit.
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		v, err := col.Collect(fctx)
		done <- outcome{value: v, err: err}
	}()

	var v metrics.Value
	var err error
	select {
	case out := <-done:
		v, err = out.value, out.err
	case <-fctx.Done():
		err = fctx.Err()
	}
	latency := time.Since(start)

	// Normalize a raw error the collector did not wrap itself.
	if err != nil {
		var fe *collectors.FetchError
		if !errors.As(err, &fe) {
			err = &collectors.FetchError{SourceID: sourceID, Cause: err}
		}
		v = nil
	}
	return fetchResult{sourceID: sourceID, value: v, err: err, latency: latency}
}

// applyAll folds a cycle's fetch results into the readings map under a
// single lock, so a concurrent Snapshot sees either the whole cycle or
// none of it, then updates registry statuses and publishes through the
// gate in result order. Failure readings retain the previous data
// (stale-but-present) and are themselves publishable facts when the
// success flag flips. Results for sources deregistered while their
// fetch was in flight are dropped: a removed source never reappears.
func (c *Coordinator) applyAll(results []fetchResult, now time.Time) []metrics.Reading {
	applied := make([]metrics.Reading, 0, len(results))
	kept := results[:0]

	c.mu.Lock()
	for _, res := range results {
		if _, ok := c.registry.Get(res.sourceID); !ok {
			continue
		}
		reading := c.nextReading(res, now)
		c.readings[res.sourceID] = reading
		applied = append(applied, reading)
		kept = append(kept, res)
	}
	c.mu.Unlock()

	for i, res := range kept {
		c.registry.RecordRun(res.sourceID, res.err, res.latency)

		if res.err != nil {
			c.log.Debug("source degraded", "source", res.sourceID, "error", res.err)
		}

		if c.gate.Admit(applied[i]) {
			c.bus.Publish(bus.Publication{SourceID: res.sourceID, Reading: applied[i]})
		}
	}
	return applied
}

// nextReading builds the reading that replaces the current one for a
// fetch result. Caller holds c.mu.
func (c *Coordinator) nextReading(res fetchResult, now time.Time) metrics.Reading {
	prev, existed := c.readings[res.sourceID]
	state := metrics.StateUninitialized
	if existed {
		state = prev.State
	}

	success := res.err == nil
	reading := metrics.Reading{
		SourceID:          res.sourceID,
		LastUpdateSuccess: success,
		Timestamp:         now,
		State:             state.Next(success),
	}
	if success {
		reading.Data = res.value
	} else {
		if existed {
			reading.Data = prev.Data
		}
		reading.Err = res.err.Error()
	}
	return reading
}
