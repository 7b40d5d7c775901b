package resource

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type traceKey struct{}

// Trace counts how often each collection was consulted while answering one
// top-level query. Nested collections find it in the context and only record.
type Trace struct {
	mu          sync.Mutex
	logger      *slog.Logger
	op          string
	query       string
	start       time.Time
	collections map[string]int
}

// StartTrace returns the trace already carried by ctx, or starts a new one.
// Only the owner (second result true) must call Finish.
func StartTrace(ctx context.Context, logger *slog.Logger, op string, query ...string) (context.Context, *Trace, bool) {
	if t := TraceFrom(ctx); t != nil {
		return ctx, t, false
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Trace{
		logger:      logger,
		op:          op,
		query:       strings.Join(query, ", "),
		start:       time.Now(),
		collections: make(map[string]int),
	}
	return context.WithValue(ctx, traceKey{}, t), t, true
}

// TraceFrom returns the trace carried by ctx, if any.
func TraceFrom(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	return t
}

// Collection records that name was consulted.
func (t *Trace) Collection(name string) {
	if name == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collections[name]++
}

// Count returns how often name was consulted so far.
func (t *Trace) Count(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.collections[name]
}

// Counts returns a copy of all recorded counts.
func (t *Trace) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[string]int, len(t.collections))
	for k, v := range t.collections {
		counts[k] = v
	}
	return counts
}

// Finish logs a summary at debug level.
func (t *Trace) Finish(ctx context.Context, results int) {
	if !t.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	t.logger.DebugContext(ctx, "resource query",
		"op", t.op,
		"query", t.query,
		"results", results,
		"collections", t.Counts(),
		"elapsed", time.Since(t.start),
	)
}
