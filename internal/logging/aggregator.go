package logging

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

type aggregateKey struct {
	component string
	event     string
}

type aggregateEntry struct {
	count  int64
	fields []slog.Attr
}

// Aggregator batches high-frequency events such as pty reads and title
// changes, and logs one "event_summary" line per event per interval.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	entries map[aggregateKey]*aggregateEntry

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAggregator returns an aggregator flushing every intervalSecs seconds.
// A nil logger drops everything.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		entries:  make(map[aggregateKey]*aggregateEntry),
		done:     make(chan struct{}),
	}
}

// Start launches the flush goroutine.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(a.interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				a.Flush()
			case <-a.done:
				return
			}
		}
	}()
}

// Stop ends the flush goroutine and writes what is pending. Safe to call
// more than once.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		a.Flush()
	})
}

// Record bumps the counter for (component, event). The most recent non-empty
// fields are reported with the summary.
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := aggregateKey{component, event}
	e := a.entries[k]
	if e == nil {
		e = &aggregateEntry{}
		a.entries[k] = e
	}
	e.count++
	if len(fields) > 0 {
		e.fields = fields
	}
}

// Pending returns the current count for an event.
func (a *Aggregator) Pending(component, event string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e := a.entries[aggregateKey{component, event}]; e != nil {
		return e.count
	}
	return 0
}

// Flush emits and resets all counters.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	entries := a.entries
	a.entries = make(map[aggregateKey]*aggregateEntry)
	a.mu.Unlock()

	if a.logger == nil || len(entries) == 0 {
		return
	}

	keys := make([]aggregateKey, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].component != keys[j].component {
			return keys[i].component < keys[j].component
		}
		return keys[i].event < keys[j].event
	})

	for _, k := range keys {
		e := entries[k]
		args := []any{
			slog.String("component", k.component),
			slog.String("event", k.event),
			slog.Int64("count", e.count),
			slog.Int("window_seconds", int(a.interval.Seconds())),
		}
		for _, f := range e.fields {
			args = append(args, f)
		}
		a.logger.Info("event_summary", args...)
	}
}
